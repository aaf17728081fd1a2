package cmd

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/trackerhq/tracker/internal/api"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	Long:  "Start the REST API server.\nBy default it listens on port 8080. Use --port to change it.",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := getStore()
		if err != nil {
			return err
		}

		logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
		server := api.NewServer(s, logger)

		addr := fmt.Sprintf(":%d", viper.GetInt("port"))
		ui.Info("Serving API at http://localhost%s/api/v1", addr)
		return http.ListenAndServe(addr, server.Router())
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().IntP("port", "p", 8080, "port to listen on")
	_ = viper.BindPFlag("port", serveCmd.Flags().Lookup("port"))
}
