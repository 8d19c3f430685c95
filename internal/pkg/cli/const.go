package cli

const (
	appName     string = "operator-upgradepath"
	defaultRoot string = "."
)
