package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var configPath string

func main() {
	// Carregar variáveis de ambiente
	if err := godotenv.Load(); err != nil {
		fmt.Fprintln(os.Stderr, "Arquivo .env não encontrado, usando variáveis de ambiente do sistema")
	}

	rootCmd := &cobra.Command{
		Use:           "monitor",
		Short:         "Monitor de catálogos de lojas concorrentes",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", ".", "diretório do config.yaml")
	rootCmd.AddCommand(
		newServeCmd(),
		newScanCmd(),
		newCompetitorsCmd(),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Erro: %v\n", err)
		os.Exit(1)
	}
}
