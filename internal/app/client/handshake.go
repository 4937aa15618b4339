package client

import (
	"fmt"
	"strings"
	"time"

	"linechat/internal/app/chat"
)

// answers supplies replies to the server's login prompts.
type answers interface {
	Username() (string, error)
	Register() (string, error)
	Password() (string, error)

	// Notice receives every other server line. An error aborts the login.
	Notice(line string) error
}

// handshake drives the server's login dialogue until "ok", then prints the
// online list and the welcome line. It returns the credentials last sent.
func (c *Client) handshake(conn chat.LineConn, a answers) (username, password string, err error) {
	for {
		line, err := c.readHandshakeLine(conn)
		if err != nil {
			return "", "", err
		}

		var reply string
		switch {
		case strings.HasPrefix(line, chat.PromptUsername):
			reply, err = a.Username()
			username = reply
		case line == chat.PromptRegister:
			reply, err = a.Register()
		case strings.HasPrefix(line, chat.PromptPassword):
			reply, err = a.Password()
			password = reply
		case line == chat.MsgOK:
			return username, password, c.finishHandshake(conn)
		default:
			if err := a.Notice(line); err != nil {
				return "", "", err
			}
			continue
		}
		if err != nil {
			return "", "", err
		}

		if err := conn.WriteLine(reply); err != nil {
			return "", "", err
		}
	}
}

// finishHandshake prints the two greeting lines that follow "ok".
func (c *Client) finishHandshake(conn chat.LineConn) error {
	for range 2 {
		line, err := c.readHandshakeLine(conn)
		if err != nil {
			return err
		}
		c.println(line)
	}
	return conn.SetReadDeadline(time.Time{})
}

func (c *Client) readHandshakeLine(conn chat.LineConn) (string, error) {
	if c.handshakeTimeout > 0 {
		if err := conn.SetReadDeadline(time.Now().Add(c.handshakeTimeout)); err != nil {
			return "", err
		}
	}

	line, err := conn.ReadLine()
	if err != nil {
		return "", fmt.Errorf("server disconnected: %w", err)
	}
	return line, nil
}

// savedAnswers replies from the saved record and gives up on any rejection.
type savedAnswers struct {
	cfg ServerConfig
	c   *Client
}

func (s savedAnswers) Username() (string, error) { return s.cfg.Username, nil }
func (s savedAnswers) Password() (string, error) { return s.cfg.Password, nil }

func (s savedAnswers) Register() (string, error) {
	return "", fmt.Errorf("%w: user %s is unknown", errSavedLoginRejected, s.cfg.Username)
}

func (s savedAnswers) Notice(line string) error {
	switch {
	case strings.HasPrefix(line, chat.WrongPasswordPrefix),
		line == chat.MsgUserOnline,
		line == chat.MsgDifferentUsername,
		line == chat.MsgTooManyAttempts:
		return fmt.Errorf("%w: %s", errSavedLoginRejected, line)
	}
	s.c.println(line)
	return nil
}

// promptAnswers asks the user at the terminal.
type promptAnswers struct {
	c *Client
}

func (p promptAnswers) Username() (string, error) { return p.c.ask("username: ") }
func (p promptAnswers) Register() (string, error) { return p.c.ask("register? (y/n): ") }
func (p promptAnswers) Password() (string, error) { return p.c.ask("password: ") }

func (p promptAnswers) Notice(line string) error {
	p.c.println("server: " + line)
	return nil
}
