package aria2

// Status is the subset of an aria2 status struct riptide requests.
// aria2 encodes every number as a decimal string.
type Status struct {
	GID             string      `json:"gid"`
	Status          string      `json:"status"`
	TotalLength     string      `json:"totalLength"`
	CompletedLength string      `json:"completedLength"`
	DownloadSpeed   string      `json:"downloadSpeed"`
	Files           []File      `json:"files"`
	FollowedBy      []string    `json:"followedBy"`
	Following       string      `json:"following"`
	BitTorrent      *BitTorrent `json:"bittorrent"`
}

// File is one entry of a status's file list.
type File struct {
	Index           string `json:"index"`
	Path            string `json:"path"`
	Length          string `json:"length"`
	CompletedLength string `json:"completedLength"`
	Selected        string `json:"selected"`
}

// BitTorrent carries torrent metadata. Info is absent while a magnet
// link is still fetching metadata.
type BitTorrent struct {
	Info *struct {
		Name string `json:"name"`
	} `json:"info"`
}

// Version is the aria2.getVersion result.
type Version struct {
	Version         string   `json:"version"`
	EnabledFeatures []string `json:"enabledFeatures"`
}

// Options are per-download aria2 options, e.g. {"dir": "/downloads"}.
type Options map[string]string

// StatusKeys limits tellStatus/tellActive/tellStopped responses to what the mapper reads.
var StatusKeys = []string{
	"gid", "status", "totalLength", "completedLength", "downloadSpeed",
	"files", "followedBy", "following", "bittorrent",
}
