package cmd

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/cuyler-at-scribe/pushover-desktop-client/internal/relay"
)

var (
	setupEmail      string
	setupPassword   string
	setupDeviceName string
	setupForce      bool
)

var deviceNamePattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,25}$`)

// setupCmd represents the setup command
var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Log in and register this machine as a device",
	Long: `Log in and register this machine as a device.

Exchanges your account credentials for the account secret, registers
this machine as a new desktop device, and writes both to the config
file. Credentials are sent once and never stored.`,
	Args: cobra.NoArgs,
	RunE: runSetup,
}

func init() {
	RootCmd.AddCommand(setupCmd)

	setupCmd.Flags().StringVar(&setupEmail, "email", "", "account email (prompted when omitted)")
	setupCmd.Flags().StringVar(&setupPassword, "password", "", "account password (prompted when omitted)")
	setupCmd.Flags().StringVar(&setupDeviceName, "device-name", "", "device name, up to 25 letters, digits, dashes and underscores")
	setupCmd.Flags().BoolVar(&setupForce, "force", false, "replace an existing device registration")
}

func runSetup(cmd *cobra.Command, args []string) error {
	s, err := loadSettings()
	if err != nil {
		return err
	}
	if err := initLogging(s); err != nil {
		return err
	}

	if s.DeviceID != "" && !setupForce {
		if setupEmail != "" || setupPassword != "" {
			// Flag-driven invocations have no prompt to confirm on.
			return fmt.Errorf("device %q is already registered; pass --force to replace it", s.DeviceName)
		}
		var replace bool
		err := huh.NewConfirm().
			Title("A device is already registered").
			Description(fmt.Sprintf("Replace device %q? The old registration stays on the account.", s.DeviceName)).
			Value(&replace).
			Run()
		if err != nil {
			return err
		}
		if !replace {
			fmt.Fprintln(cmd.OutOrStdout(), "Setup cancelled.")
			return nil
		}
	}

	email := setupEmail
	password := setupPassword
	deviceName := setupDeviceName
	if deviceName == "" {
		deviceName = defaultDeviceName()
	}

	if email == "" || password == "" {
		form := huh.NewForm(huh.NewGroup(
			huh.NewInput().
				Title("Email").
				Validate(validateRequired("email")).
				Value(&email),
			huh.NewInput().
				Title("Password").
				EchoMode(huh.EchoModePassword).
				Validate(validateRequired("password")).
				Value(&password),
			huh.NewInput().
				Title("Device name").
				Description("Up to 25 letters, digits, dashes and underscores").
				Validate(validateDeviceName).
				Value(&deviceName),
		))
		if err := form.Run(); err != nil {
			return err
		}
	}

	if err := validateDeviceName(deviceName); err != nil {
		return err
	}

	client := relay.NewClient(relay.ClientConfig{
		BaseURL: s.APIURL,
		Timeout: s.RequestTimeout,
	})

	ctx := cmd.Context()
	login, err := client.Login(ctx, email, password)
	if err != nil {
		return err
	}
	device, err := client.RegisterDevice(ctx, login.Secret, deviceName)
	if err != nil {
		return err
	}

	s.DeviceID = device.ID
	s.DeviceName = deviceName
	s.Secret = login.Secret
	if err := s.Save(); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Registered device %q (id %s).\n", deviceName, device.ID)
	fmt.Fprintf(cmd.OutOrStdout(), "Config written to %s.\n", s.ConfigPath())
	fmt.Fprintln(cmd.OutOrStdout(), `Start receiving notifications with "pushover-dc run".`)
	return nil
}

func validateRequired(field string) func(string) error {
	return func(v string) error {
		if strings.TrimSpace(v) == "" {
			return fmt.Errorf("%s is required", field)
		}
		return nil
	}
}

// validateDeviceName enforces the server's device name rules.
func validateDeviceName(name string) error {
	if !deviceNamePattern.MatchString(name) {
		return fmt.Errorf("device name must be 1-25 characters of letters, digits, dashes or underscores")
	}
	return nil
}

// defaultDeviceName derives a device name from the hostname, keeping
// only characters the server accepts.
func defaultDeviceName() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		return "desktop"
	}
	if i := strings.IndexByte(host, '.'); i >= 0 {
		host = host[:i]
	}
	host = sanitizeDeviceName(host)
	if host == "" {
		return "desktop"
	}
	return host
}

func sanitizeDeviceName(name string) string {
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		}
	}
	s := b.String()
	if len(s) > 25 {
		s = s[:25]
	}
	return s
}
