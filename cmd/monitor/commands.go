package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"monitor-concorrentes/internal/bot"
	"monitor-concorrentes/internal/models"
	"monitor-concorrentes/internal/monitor"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Inicia o agendador de scans, o bot do Telegram e as métricas",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.cfg.RequireTelegram(); err != nil {
				return err
			}
			telegramBot, err := bot.Init(a.cfg.TelegramBotToken, a.logger)
			if err != nil {
				return fmt.Errorf("erro ao inicializar bot do Telegram: %w", err)
			}
			if a.cfg.TelegramChatID == 0 {
				a.logger.Warn("TELEGRAM_CHAT_ID não configurado; alertas não serão enviados e qualquer chat pode usar o bot")
			}

			notifier := bot.NewNotifier(telegramBot, a.cfg.TelegramChatID, 0, a.logger.Named("notifier"))
			var scanNotifier monitor.Notifier
			if a.cfg.TelegramChatID != 0 {
				scanNotifier = notifier
			}
			m := a.newMonitor(scanNotifier)
			handler := bot.NewHandler(telegramBot, a.db, m, a.cfg.TelegramChatID, a.logger.Named("bot"))

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error { return m.Start(gctx) })
			g.Go(func() error {
				notifier.Run(gctx)
				return nil
			})
			g.Go(func() error {
				u := tgbotapi.NewUpdate(0)
				u.Timeout = 60
				updates := telegramBot.GetUpdatesChan(u)
				defer telegramBot.StopReceivingUpdates()
				handler.Listen(gctx, updates)
				return nil
			})
			if a.cfg.MetricsAddr != "" {
				srv := &http.Server{Addr: a.cfg.MetricsAddr, Handler: promhttp.Handler(), ReadHeaderTimeout: 5 * time.Second}
				g.Go(func() error {
					a.logger.Info("Métricas disponíveis", zap.String("addr", a.cfg.MetricsAddr))
					if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
						return fmt.Errorf("erro no servidor de métricas: %w", err)
					}
					return nil
				})
				g.Go(func() error {
					<-gctx.Done()
					shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), 5*time.Second)
					defer cancel()
					return srv.Shutdown(shutdownCtx)
				})
			}

			err = g.Wait()
			a.logger.Info("Encerrando monitor...")
			return err
		},
	}
}

func newScanCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "scan <competitor-id>",
		Short: "Executa um scan imediato de um concorrente",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("ID inválido: %s", args[0])
			}

			ctx := cmd.Context()
			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			summary, err := a.newMonitor(nil).RunScan(ctx, id)
			if err != nil {
				return err
			}

			r := summary.Result
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Concorrente %d: %s (%s, %s)\n", id, r.Status, summary.Strategy, r.Duration.Round(time.Millisecond))
			fmt.Fprintf(out, "  novos: %d  removidos: %d  preços: %d  títulos: %d  alertas: %d\n",
				r.NewCount, r.RemovedCount, r.PriceChangedCount, r.TitleChangedCount, len(summary.Alerts))
			if r.Error != "" {
				fmt.Fprintf(out, "  erro do crawl: %s\n", r.Error)
			}
			return nil
		},
	}
}

func newCompetitorsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "competitors",
		Short: "Gerencia os concorrentes monitorados",
	}

	var platform string
	add := &cobra.Command{
		Use:   "add <nome> <url>",
		Short: "Adiciona um concorrente",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			name, storeURL := args[0], strings.TrimRight(args[1], "/")
			u, err := url.Parse(storeURL)
			if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
				return fmt.Errorf("URL inválida: %s", args[1])
			}
			if platform == "" {
				platform = bot.DetectPlatform(u)
			}

			ctx := cmd.Context()
			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			id, err := a.db.AddCompetitor(ctx, models.Competitor{Name: name, URL: storeURL, Platform: platform})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Concorrente adicionado: %d\n", id)
			return nil
		},
	}
	add.Flags().StringVar(&platform, "platform", "", "plataforma da loja (shopify ou custom)")

	list := &cobra.Command{
		Use:   "list",
		Short: "Lista os concorrentes",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			competitors, err := a.db.ListCompetitors(ctx, "")
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, c := range competitors {
				last := "nunca"
				if c.LastScannedAt != nil {
					last = c.LastScannedAt.Format(time.RFC3339)
				}
				fmt.Fprintf(out, "%d\t%s\t%s\t%s\t%d produtos\túltimo scan: %s\n", c.ID, c.Name, c.Status, c.URL, c.ProductCount, last)
			}
			return nil
		},
	}

	cmd.AddCommand(add, list)
	return cmd
}
