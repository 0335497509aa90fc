package version

import "runtime/debug"

// AppName is the name reported in build_info and by -V.
const AppName = "startupgate"

// Set at link time with -ldflags "-X .../internal/version.Version=...".
var (
	Version    = "dev"
	Commit     = "none"
	CommitDate string
	BuildDate  string
	BuildId    string
	GoVersion  string
	VCSDirty   *bool
)

type Info struct {
	AppName    string `json:"app"`
	Version    string `json:"version"`
	Commit     string `json:"commit"`
	CommitDate string `json:"commit_date,omitempty"`
	BuildDate  string `json:"build_date,omitempty"`
	BuildId    string `json:"build_id,omitempty"`
	GoVersion  string `json:"go_version"`
	VCSDirty   *bool  `json:"vcs_dirty,omitempty"`
}

// Get merges the link-time values with what the toolchain stamped into the
// binary. Link-time values win when both are set.
func Get() Info {
	out := Info{
		AppName:    AppName,
		Version:    Version,
		Commit:     Commit,
		CommitDate: CommitDate,
		BuildDate:  BuildDate,
		BuildId:    BuildId,
		GoVersion:  GoVersion,
		VCSDirty:   VCSDirty,
	}

	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return out
	}
	if out.GoVersion == "" {
		out.GoVersion = bi.GoVersion
	}
	for _, s := range bi.Settings {
		switch s.Key {
		case "vcs.revision":
			if out.Commit == "none" && s.Value != "" {
				out.Commit = s.Value
			}
		case "vcs.time":
			if out.CommitDate == "" {
				out.CommitDate = s.Value
			}
		case "vcs.modified":
			if out.VCSDirty == nil && s.Value != "" {
				dirty := s.Value == "true"
				out.VCSDirty = &dirty
			}
		}
	}
	return out
}

// Short is the one-line form printed by -V.
func (i Info) Short() string {
	dirty := i.VCSDirty != nil && *i.VCSDirty
	s := i.AppName + " " + i.Version + " (commit=" + i.Commit
	if i.BuildDate != "" {
		s += ", build_date=" + i.BuildDate
	}
	if dirty {
		s += ", dirty"
	}
	return s + ", go=" + i.GoVersion + ")"
}
