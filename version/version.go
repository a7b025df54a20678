package version

var Version version

func init() {
	Version = version{Version: "v0.1.0", Product: "mirror-master", Website: "https://github.com/hhzhhzhhz/mirror-master"}
}

type version struct {
	Version string `json:"version"`
	Product string `json:"product"`
	Website string `json:"website"`
}
