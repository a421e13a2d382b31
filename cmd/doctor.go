package cmd

import (
	"fmt"
	"os"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/brobarber/brobot/internal/catalog"
	"github.com/brobarber/brobot/internal/config"
	"github.com/brobarber/brobot/internal/store"
)

func doctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check environment and configuration health",
		Run: func(cmd *cobra.Command, args []string) {
			runDoctor()
		},
	}
}

func runDoctor() {
	fmt.Println("brobot doctor")
	fmt.Printf("  Version:  %s\n", Version)
	fmt.Printf("  OS:       %s/%s\n", runtime.GOOS, runtime.GOARCH)
	fmt.Printf("  Go:       %s\n", runtime.Version())
	fmt.Println()

	cfgPath := resolveConfigPath()
	fmt.Printf("  Config:   %s", cfgPath)
	if _, err := os.Stat(cfgPath); err != nil {
		fmt.Println(" (NOT FOUND, defaults + env apply)")
	} else {
		fmt.Println(" (OK)")
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Printf("  Config load error: %s\n", err)
		return
	}

	fmt.Println()
	fmt.Println("  Secrets:")
	checkSecret("WhatsApp token (BROBOT_WHATSAPP_TOKEN)", cfg.WhatsApp.AccessToken)
	checkSecret("Gemini API key (BROBOT_GEMINI_API_KEY)", cfg.Provider.APIKey)
	checkSecret("Webhook verify token", cfg.Gateway.VerifyToken)

	fmt.Println()
	fmt.Println("  WhatsApp:")
	if cfg.WhatsApp.BridgeURL != "" {
		fmt.Printf("    %-18s %s\n", "Bridge:", cfg.WhatsApp.BridgeURL)
	} else {
		checkSecret("Phone number ID", cfg.WhatsApp.PhoneNumberID)
	}

	fmt.Println()
	fmt.Println("  Catalog:")
	if cfg.Catalog.Path == "" {
		fmt.Println("    embedded default")
	} else {
		path := config.ExpandHome(cfg.Catalog.Path)
		if _, err := catalog.Load(path); err != nil {
			fmt.Printf("    %s (LOAD FAILED: %s)\n", path, err)
		} else {
			fmt.Printf("    %s (OK, hot reload %v)\n", path, cfg.Catalog.HotReload)
		}
	}

	fmt.Println()
	fmt.Println("  Database:")
	fmt.Printf("    %-18s %s\n", "Driver:", cfg.Database.Driver)
	if st, err := store.Open(cfg.Database); err != nil {
		fmt.Printf("    %-18s OPEN FAILED (%s)\n", "Status:", err)
	} else {
		st.Close()
		fmt.Printf("    %-18s OK\n", "Status:")
	}

	fmt.Println()
	fmt.Println("  Links:")
	checkSecret("Booking link", cfg.Links.Booking)
	checkSecret("Maps link", cfg.Links.Maps)

	fmt.Println()
	fmt.Println("  Ops notifications:")
	if cfg.Ops.WhatsAppNumber == "" && (cfg.Ops.TelegramToken == "" || cfg.Ops.TelegramChatID == 0) {
		fmt.Println("    log only (no WhatsApp number or Telegram chat configured)")
	} else {
		if cfg.Ops.WhatsAppNumber != "" {
			fmt.Printf("    WhatsApp → %s\n", cfg.Ops.WhatsAppNumber)
		}
		if cfg.Ops.TelegramToken != "" && cfg.Ops.TelegramChatID != 0 {
			fmt.Printf("    Telegram → chat %d\n", cfg.Ops.TelegramChatID)
		}
	}

	fmt.Println()
	if err := cfg.Validate(); err != nil {
		fmt.Printf("  Result: NOT READY — %s\n", err)
		os.Exit(1)
	}
	fmt.Println("  Result: ready to run")
}

func checkSecret(label, value string) {
	status := "MISSING"
	if value != "" {
		status = "set"
	}
	fmt.Printf("    %-40s %s\n", label+":", status)
}
