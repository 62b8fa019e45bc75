package cmd

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.viam.com/rdk/logging"

	"github.com/tinylora/classa"
	"github.com/tinylora/classa/cryptocore"
	"github.com/tinylora/classa/platform"
	"github.com/tinylora/classa/store"
)

var (
	sendPort    uint8
	sendPayload string
)

var sendCmd = &cobra.Command{
	Use:   "send",
	Short: "Send an uplink and listen for a downlink acknowledgement",
	RunE:  runSend,
}

func init() {
	sendCmd.Flags().Uint8Var(&sendPort, "port", 1, "FPort to send on")
	sendCmd.Flags().StringVar(&sendPayload, "payload", "cafe", "hex-encoded uplink payload")
}

func runSend(_ *cobra.Command, _ []string) error {
	profile, err := LoadProfile(cfgFile)
	if err != nil {
		return err
	}
	payload, err := hex.DecodeString(sendPayload)
	if err != nil {
		return fmt.Errorf("simulate: invalid --payload: %w", err)
	}

	logger := logging.NewLogger("simulate")

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

	sess, err := st.Load()
	if err != nil {
		return fmt.Errorf("simulate: loading session: %w", err)
	}
	if !sess.Magic {
		return errors.New("simulate: no stored session; run `simulate join` first")
	}

	keys := cryptocore.SessionKeys{
		AppSKey:     sess.AppSKey,
		FNwkSIntKey: sess.FNwkSIntKey,
		SNwkSIntKey: sess.SNwkSIntKey,
		NwkSEncKey:  sess.NwkSEncKey,
	}
	server := newJoinedNetworkServer(nwkKey, appKey, sess.DevAddr, keys, 0, logger)
	air := newAirlinkRadio(server, logger)
	dev := classa.New(air, platform.NewSystemClock(), st, bandProfile, logger)

	ctx := context.Background()
	if err := dev.Begin(ctx); err != nil {
		return fmt.Errorf("simulate: resuming session: %w", err)
	}

	if err := dev.Uplink(ctx, payload, sendPort); err != nil {
		return fmt.Errorf("simulate: uplink failed: %w", err)
	}
	logger.Infof("simulate: uplink sent, %d bytes on port %d", len(payload), sendPort)

	down, err := dev.Downlink(ctx)
	if err != nil {
		logger.Warnf("simulate: no downlink received: %v", err)
		return nil
	}
	logger.Infof("simulate: downlink received: %x", down)
	return nil
}
