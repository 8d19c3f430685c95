package consts

const (
	WorkingDir   string = "working-dir"
	LogsDir      string = "logs"
	ManifestFile string = "manifest.json"
	BlobsDir     string = "blobs"
	CacheDir     string = "cache"
	ConfigsDir   string = "configs"

	// SHA256 is the only digest algorithm laid out under blobs/.
	SHA256 string = "sha256"

	RegistryLogFile string = "registry.log"
)
