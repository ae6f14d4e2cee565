package cmd

import (
	"github.com/alapierre/go-parasut-client/invoice"
	"github.com/alapierre/go-parasut-client/parasut"
	"github.com/alapierre/go-parasut-client/util"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "none"
)

// newPort buduje adapter z konfiguracji środowiskowej; podmieniany w testach.
var newPort = func() (invoice.Port, error) {
	creds, err := parasut.LoadCredentials()
	if err != nil {
		return nil, err
	}
	return parasut.New(creds, parasut.WithMetrics(parasut.NewMetrics(prometheus.DefaultRegisterer)))
}

func newRootCmd() *cobra.Command {
	var debug bool

	cmd := &cobra.Command{
		Use:           "parasut",
		Short:         "Paraşüt invoice client",
		Long:          "Command line access to Paraşüt sales invoices. Configuration is read from PARASUT_* environment variables.",
		Version:       version + " (" + commit + ")",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if debug || util.DebugEnabled() {
				logrus.SetLevel(logrus.DebugLevel)
			}
		},
	}
	cmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")

	cmd.AddCommand(newHealthCmd())
	cmd.AddCommand(newCapabilitiesCmd())
	cmd.AddCommand(newGetCmd())
	cmd.AddCommand(newListCmd())
	cmd.AddCommand(newStatsCmd())
	cmd.AddCommand(newPDFCmd())
	return cmd
}

func Execute() error {
	err := newRootCmd().Execute()
	if err != nil {
		logrus.Error(err)
	}
	return err
}
