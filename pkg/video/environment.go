package video

// BackendStatus describes one encoder backend for doctor output.
type BackendStatus struct {
	Name      string
	Available bool
	Codecs    []string
	Message   string
	Guidance  string
}

// Environment lists backend availability and the codec the adapter would pick.
type Environment struct {
	Backends []BackendStatus
	Selected string
	Backend  string
}

// DetectEnvironment reports which of the preferred codecs each factory can
// serve on this host.
func DetectEnvironment(codecs []string, factories []Factory) Environment {
	if len(codecs) == 0 {
		codecs = DefaultCodecs
	}
	env := Environment{}
	for _, f := range factories {
		status := BackendStatus{Name: f.Name()}
		for _, codec := range codecs {
			if f.Supports(codec) {
				status.Codecs = append(status.Codecs, codec)
			}
		}
		status.Available = len(status.Codecs) > 0
		if ff, ok := f.(*FFmpegFactory); ok {
			probe := ff.Probe()
			status.Message = probe.Message
			status.Guidance = probe.Guidance
		} else if status.Available {
			status.Message = "pure Go encoder"
		}
		env.Backends = append(env.Backends, status)
	}
	if f, codec, err := Negotiate(codecs, factories); err == nil {
		env.Selected = codec
		env.Backend = f.Name()
	}
	return env
}
