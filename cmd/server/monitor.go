package main

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/palemoky/magic-table/internal/monitor"
	"github.com/palemoky/magic-table/internal/storage"
)

func newMonitorCmd() *cobra.Command {
	var interval time.Duration

	cmd := &cobra.Command{
		Use:   "monitor",
		Short: "在终端查看当前会话状态（需要 Redis）",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := loadConfig()
			rdb, err := connectRedis(cmd.Context(), cfg.Redis)
			if err != nil {
				return err
			}
			defer func() { _ = rdb.Close() }()

			m := monitor.New(storage.NewRedisStore(rdb), interval)
			_, err = tea.NewProgram(m, tea.WithAltScreen()).Run()
			return err
		},
	}

	cmd.Flags().DurationVarP(&interval, "interval", "i", 3*time.Second, "刷新间隔")
	return cmd
}
