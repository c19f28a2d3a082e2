package cfg

type Cfg struct {
	// Storage configuration
	DBPath string

	// Application configuration
	SourcesDir        string
	Port              string
	WorkerCount       int
	SchedulerInterval int
	APIAccessKey      string

	// Network configuration
	PrimaryProxyURL string
	CORSProxyURL    string
	ReaderProxyURL  string
	FetchTimeout    int // seconds, per proxy candidate
	DefaultTTL      int // seconds, freshness window when a source has none

	// Application metadata
	UserAgent string
	Timezone  string
	Debug     bool
	Version   string
}
