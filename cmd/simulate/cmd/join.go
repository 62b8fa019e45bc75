package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.viam.com/rdk/logging"

	"github.com/tinylora/classa"
	"github.com/tinylora/classa/platform"
	"github.com/tinylora/classa/store"
)

var joinForce bool

var joinCmd = &cobra.Command{
	Use:   "join",
	Short: "Run an OTAA join against the loopback network server",
	RunE:  runJoin,
}

func init() {
	joinCmd.Flags().BoolVar(&joinForce, "force", false, "join even if a session is already stored")
}

func runJoin(_ *cobra.Command, _ []string) error {
	profile, err := LoadProfile(cfgFile)
	if err != nil {
		return err
	}

	logger := logging.NewLogger("simulate")

	joinEUI, err := profile.JoinEUIBytes()
	if err != nil {
		return err
	}
	devEUI, err := profile.DevEUIBytes()
	if err != nil {
		return err
	}
	nwkKey, err := profile.NwkKeyBytes()
	if err != nil {
		return err
	}
	appKey, err := profile.AppKeyBytes()
	if err != nil {
		return err
	}
	bandProfile, err := profile.Band()
	if err != nil {
		return err
	}

	st, err := store.OpenSQLiteStore(profile.StorePath)
	if err != nil {
		return fmt.Errorf("simulate: opening session store: %w", err)
	}
	defer st.Close() //nolint:errcheck

	server := newNetworkServer(nwkKey, appKey, logger)
	air := newAirlinkRadio(server, logger)
	dev := classa.New(air, platform.NewSystemClock(), st, bandProfile, logger)

	ctx := context.Background()
	if err := dev.BeginOTAA(ctx, joinEUI, devEUI, nwkKey, appKey, joinForce); err != nil {
		return fmt.Errorf("simulate: join failed: %w", err)
	}

	logger.Infof("simulate: session established, state %v", dev.State())
	return nil
}
