package main

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/olekukonko/tablewriter"
	"github.com/urfave/cli/v3"

	"github.com/supplai-io/supplai/internal/client"
	"github.com/supplai-io/supplai/internal/models"
)

const (
	encodeColumn   = "column"
	encodeNoHeader = "no-header"
	encodeJsonRaw  = "json-raw"
)

func watchOrderCommand() *cli.Command {
	return &cli.Command{
		Name:      "watch-order",
		Usage:     "Follow the supplier emails of an order",
		ArgsUsage: "<order id>",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "server",
				Value:   "http://localhost:8080",
				Usage:   "Base url of the supplai server",
				Sources: cli.EnvVars("SUPPLAI_SERVER"),
			},
			&cli.StringFlag{
				Name:     "email",
				Usage:    "Account email address",
				Required: true,
				Sources:  cli.EnvVars("SUPPLAI_EMAIL"),
			},
			&cli.StringFlag{
				Name:     "password",
				Usage:    "Account password",
				Required: true,
				Sources:  cli.EnvVars("SUPPLAI_PASSWORD"),
			},
			&cli.BoolFlag{
				Name:  "websocket",
				Usage: "Use the websocket feed instead of the streaming response",
			},
			&cli.BoolFlag{
				Name:  "until-sent",
				Usage: "Exit once every supplier email was sent",
			},
			&cli.BoolFlag{
				Name:    "insecure-skip-tls-verify",
				Usage:   "Trust any TLS certificate",
				Sources: cli.EnvVars("SUPPLAI_INSECURE_TLS"),
			},
			&cli.StringFlag{
				Name:  "output",
				Value: encodeColumn,
				Usage: "Output format: column, no-header or json-raw",
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			if command.Args().Len() != 1 {
				return fmt.Errorf("expected one order id, got %d arguments", command.Args().Len())
			}
			id, err := uuid.Parse(command.Args().First())
			if err != nil {
				return fmt.Errorf("invalid order id: %w", err)
			}

			opts := []client.Option{
				client.WithPasswordGrant(command.String("email"), command.String("password")),
				client.WithUserAgent("supplai-cli"),
			}
			if command.Bool("insecure-skip-tls-verify") { // #nosec G402
				opts = append(opts, client.WithTLSConfig(&tls.Config{
					InsecureSkipVerify: true,
				}))
			}
			c, err := client.New(ctx, command.String("server"), opts...)
			if err != nil {
				return err
			}

			var stream client.StatusStream
			if command.Bool("websocket") {
				stream, err = c.DialOrderEmailStatus(ctx, id)
			} else {
				stream, err = c.WatchOrderEmailStatus(ctx, id)
			}
			if err != nil {
				return err
			}

			output := command.String("output")
			untilSent := command.Bool("until-sent")
			err = client.Follow(stream, func(status models.OrderEmailStatus) bool {
				if err := showStatus(os.Stdout, output, status); err != nil {
					fmt.Fprintln(os.Stderr, err)
				}
				return untilSent && status.EmailSent
			})
			if err == io.EOF || ctx.Err() != nil {
				return nil
			}
			return err
		},
	}
}

func showStatus(w io.Writer, output string, status models.OrderEmailStatus) error {
	switch output {
	case encodeJsonRaw:
		return json.NewEncoder(w).Encode(status)
	case encodeColumn, encodeNoHeader:
	default:
		return fmt.Errorf("unknown output %q", output)
	}

	table := tablewriter.NewWriter(w)
	table.SetBorders(tablewriter.Border{
		Left:   true,
		Right:  true,
		Top:    false,
		Bottom: false,
	})
	table.SetAutoWrapText(false)
	if output != encodeNoHeader {
		table.SetHeader([]string{"SUPPLIER", "STATUS", "SENT", "ERROR"})
	}
	for _, s := range status.Suppliers {
		sent := ""
		if s.SentAt != nil {
			sent = humanize.Time(*s.SentAt)
		}
		table.Append([]string{s.SupplierName, colorStatus(s.Status), sent, s.LastError})
	}
	table.Render()

	summary := fmt.Sprintf("%d of %d supplier emails sent", status.Sent, status.Total)
	if status.EmailSent {
		summary = color.New(color.FgGreen).Sprint(summary)
	}
	_, err := fmt.Fprintln(w, summary)
	return err
}

func colorStatus(status models.SupplierOrderStatus) string {
	switch status {
	case models.SupplierOrderSent:
		return color.New(color.FgGreen).Sprint(status)
	case models.SupplierOrderFailed:
		return color.New(color.FgRed).Sprint(status)
	case models.SupplierOrderSending:
		return color.New(color.FgYellow).Sprint(status)
	default:
		return string(status)
	}
}
