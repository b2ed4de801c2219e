// Command test-notification sends a single test message through the
// configured SMTP sink, to verify mail settings before going live.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/subosito/gotenv"

	"github.com/crestlinehotels/onboarding/internal/application/port"
	"github.com/crestlinehotels/onboarding/internal/config"
	"github.com/crestlinehotels/onboarding/internal/infrastructure/notify"
	"github.com/crestlinehotels/onboarding/pkg/utils"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to configuration file")
	recipient := flag.String("to", "", "recipient address (defaults to the configured HR address)")
	flag.Parse()

	_ = gotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	if cfg.SMTP.Host == "" {
		fmt.Fprintln(os.Stderr, "SMTP is not configured; set smtp.host (or SMTP_HOST)")
		os.Exit(1)
	}

	logger, err := utils.NewLogger(utils.LoggerConfig{
		Level:      "debug",
		OutputPath: "stdout",
		Format:     "console",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	mailer, err := notify.NewSMTPNotifier(notify.SMTPConfig{
		Host:     cfg.SMTP.Host,
		Port:     cfg.SMTP.Port,
		Username: cfg.SMTP.Username,
		Password: cfg.SMTP.Password,
		From:     cfg.SMTP.From,
	}, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize mailer: %v\n", err)
		os.Exit(1)
	}

	to := *recipient
	if to == "" {
		to = cfg.SMTP.HRAddress
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	err = mailer.Notify(ctx, port.Notification{
		Type:      "test",
		Recipient: to,
		Subject:   "Onboarding service test notification",
		Body:      fmt.Sprintf("Test message sent at %s. Mail delivery is working.", time.Now().Format(time.RFC3339)),
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to send test notification: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Test notification sent to %s\n", to)
}
