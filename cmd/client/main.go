/*
Package main is the entry point for the terminal chat client.
*/
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/urfave/cli"

	"linechat/internal/app/client"
	"linechat/internal/pkg/logx"
)

func main() {
	app := cli.NewApp()
	app.Name = "linechat"
	app.Usage = "Terminal client for the line chat server"
	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:  "config,c",
			Usage: "File holding the saved connection",
			Value: "data/serverconfig.json",
		},
		cli.DurationFlag{
			Name:  "handshake-timeout,t",
			Usage: "Maximum wait for each server reply during login",
			Value: client.DefaultHandshakeTimeout,
		},
		cli.BoolFlag{
			Name:  "debug,d",
			Usage: "Enable debug output on stderr",
		},
	}
	app.Action = run

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err.Error())
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	level := zerolog.WarnLevel
	if c.Bool("debug") {
		level = zerolog.DebugLevel
	}
	logx.SetOutput(zerolog.ConsoleWriter{Out: os.Stderr}, level)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	chatClient := client.New(os.Stdin, os.Stdout, client.NewConfigStore(c.String("config")),
		client.WithHandshakeTimeout(c.Duration("handshake-timeout")),
	)
	return chatClient.Run(ctx)
}
