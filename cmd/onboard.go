package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/brobarber/brobot/internal/config"
)

func onboardCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "onboard",
		Short: "Interactive setup wizard",
		Run: func(cmd *cobra.Command, args []string) {
			if err := runOnboard(); err != nil {
				fmt.Fprintln(os.Stderr, "onboard:", err)
				os.Exit(1)
			}
		},
	}
}

// runOnboard walks through the minimum viable configuration and writes two
// files: the config file (no secrets) and .env (secrets, env-loaded at boot).
func runOnboard() error {
	cfg := config.Default()

	var (
		useBridge     bool
		whatsappToken string
		geminiKey     string
	)

	err := huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title("Connect through a whatsapp-web.js bridge?").
				Description("Choose No to use the WhatsApp Cloud API directly.").
				Value(&useBridge),
		),
	).Run()
	if err != nil {
		return err
	}

	if useBridge {
		err = huh.NewForm(
			huh.NewGroup(
				huh.NewInput().
					Title("Bridge WebSocket URL").
					Placeholder("ws://localhost:3010").
					Value(&cfg.WhatsApp.BridgeURL),
			),
		).Run()
	} else {
		err = huh.NewForm(
			huh.NewGroup(
				huh.NewInput().
					Title("WhatsApp phone number ID").
					Description("From the Meta developer dashboard.").
					Value(&cfg.WhatsApp.PhoneNumberID),
				huh.NewInput().
					Title("WhatsApp access token").
					EchoMode(huh.EchoModePassword).
					Value(&whatsappToken),
			),
		).Run()
	}
	if err != nil {
		return err
	}

	err = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Gemini API key").
				EchoMode(huh.EchoModePassword).
				Value(&geminiKey),
			huh.NewInput().
				Title("Webhook verify token").
				Description("Any shared secret; Meta echoes it on webhook subscription.").
				Value(&cfg.Gateway.VerifyToken),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("Booking link").
				Placeholder("https://cal.com/labarberia").
				Value(&cfg.Links.Booking),
			huh.NewInput().
				Title("Google Maps link").
				Value(&cfg.Links.Maps),
			huh.NewInput().
				Title("Handoff contact number").
				Description("Given to clients who ask for a human.").
				Value(&cfg.Policy.HandoffContact),
			huh.NewInput().
				Title("Operations WhatsApp number (optional)").
				Description("Receives escalation alerts and can answer with #reply.").
				Value(&cfg.Ops.WhatsAppNumber),
		),
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Conversation store").
				Options(
					huh.NewOption("SQLite (single file, zero setup)", "sqlite"),
					huh.NewOption("Postgres (DSN via BROBOT_POSTGRES_DSN)", "postgres"),
				).
				Value(&cfg.Database.Driver),
		),
	).Run()
	if err != nil {
		return err
	}

	cfgPath := resolveConfigPath()
	if err := writeConfigFile(cfgPath, cfg); err != nil {
		return err
	}
	if err := writeEnvFile(".env", whatsappToken, geminiKey); err != nil {
		return err
	}

	fmt.Println()
	fmt.Printf("Wrote %s and .env — secrets live only in .env.\n", cfgPath)
	fmt.Println("Next steps:")
	fmt.Println("  brobot doctor    # verify the setup")
	fmt.Println("  brobot migrate   # create the database schema")
	fmt.Println("  brobot           # start the gateway")
	return nil
}

func writeConfigFile(path string, cfg *config.Config) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

func writeEnvFile(path, whatsappToken, geminiKey string) error {
	var content string
	if whatsappToken != "" {
		content += "BROBOT_WHATSAPP_TOKEN=" + whatsappToken + "\n"
	}
	if geminiKey != "" {
		content += "BROBOT_GEMINI_API_KEY=" + geminiKey + "\n"
	}
	if content == "" {
		return nil
	}
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		return fmt.Errorf("write env file: %w", err)
	}
	return nil
}
