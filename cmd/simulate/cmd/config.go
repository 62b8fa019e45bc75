package cmd

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/tinylora/classa/band"
	"github.com/tinylora/classa/cryptocore"
)

// Profile is the device identity and key material the simulator needs to
// stand in for a physical end-device. It is loaded from a YAML file so a
// session can be reproduced across runs without re-typing hex strings.
type Profile struct {
	DevEUI    string `mapstructure:"dev_eui"`
	JoinEUI   string `mapstructure:"join_eui"`
	NwkKey    string `mapstructure:"nwk_key"`
	AppKey    string `mapstructure:"app_key"`
	Region    string `mapstructure:"region"`
	StorePath string `mapstructure:"store_path"`
}

// Validate checks that a profile has everything a session needs before a
// Device is built from it, in the shape of the teacher's own resource
// config validators: a list of implicitly required names (always empty
// here, since a device profile has no dependent resources) plus an error.
func (p *Profile) Validate(path string) ([]string, error) {
	if p.DevEUI == "" {
		return nil, fmt.Errorf("%s: dev_eui is required", path)
	}
	if p.JoinEUI == "" {
		return nil, fmt.Errorf("%s: join_eui is required", path)
	}
	if p.NwkKey == "" {
		return nil, fmt.Errorf("%s: nwk_key is required", path)
	}
	if p.AppKey == "" {
		return nil, fmt.Errorf("%s: app_key is required", path)
	}
	if _, err := p.DevEUIBytes(); err != nil {
		return nil, err
	}
	if _, err := p.JoinEUIBytes(); err != nil {
		return nil, err
	}
	if _, err := p.NwkKeyBytes(); err != nil {
		return nil, err
	}
	if _, err := p.AppKeyBytes(); err != nil {
		return nil, err
	}
	if _, err := p.Band(); err != nil {
		return nil, err
	}
	return nil, nil
}

// LoadProfile reads a device profile from path, or from ./device.yaml when
// path is empty, applying the same defaults a fresh profile would need to
// run against EU868 out of the box.
func LoadProfile(path string) (*Profile, error) {
	v := viper.New()
	v.SetDefault("region", "EU868")
	v.SetDefault("store_path", "classa-session.db")

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("device")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("simulate: reading device profile: %w", err)
	}

	var p Profile
	if err := v.Unmarshal(&p); err != nil {
		return nil, fmt.Errorf("simulate: parsing device profile: %w", err)
	}
	if _, err := p.Validate(v.ConfigFileUsed()); err != nil {
		return nil, err
	}
	return &p, nil
}

// DevEUIBytes parses the profile's DevEUI hex string.
func (p *Profile) DevEUIBytes() ([8]byte, error) { return parseEUI(p.DevEUI) }

// JoinEUIBytes parses the profile's JoinEUI hex string.
func (p *Profile) JoinEUIBytes() ([8]byte, error) { return parseEUI(p.JoinEUI) }

// NwkKeyBytes parses the profile's network root key hex string.
func (p *Profile) NwkKeyBytes() (cryptocore.Key, error) { return parseKey(p.NwkKey) }

// AppKeyBytes parses the profile's application root key hex string.
func (p *Profile) AppKeyBytes() (cryptocore.Key, error) { return parseKey(p.AppKey) }

// Band resolves the profile's region name to a regional channel profile.
func (p *Profile) Band() (band.Profile, error) {
	switch strings.ToUpper(p.Region) {
	case "", "EU868":
		return band.EU868, nil
	case "US915":
		return band.US915, nil
	default:
		return band.Profile{}, fmt.Errorf("simulate: unknown region %q", p.Region)
	}
}

func parseEUI(s string) ([8]byte, error) {
	var eui [8]byte
	b, err := hex.DecodeString(s)
	if err != nil {
		return eui, fmt.Errorf("simulate: invalid EUI %q: %w", s, err)
	}
	if len(b) != 8 {
		return eui, fmt.Errorf("simulate: EUI %q must be 8 bytes, got %d", s, len(b))
	}
	copy(eui[:], b)
	return eui, nil
}

func parseKey(s string) (cryptocore.Key, error) {
	var key cryptocore.Key
	b, err := hex.DecodeString(s)
	if err != nil {
		return key, fmt.Errorf("simulate: invalid key %q: %w", s, err)
	}
	if len(b) != 16 {
		return key, fmt.Errorf("simulate: key %q must be 16 bytes, got %d", s, len(b))
	}
	copy(key[:], b)
	return key, nil
}
