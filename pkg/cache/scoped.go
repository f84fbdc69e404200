package cache

// ScopedKeyer prefixes the keys of another Keyer. The CLI scopes keys by
// build version so a new engine never serves results of an old one.
type ScopedKeyer struct {
	inner  Keyer
	prefix string
}

// NewScopedKeyer returns a Keyer prefixing the keys of inner, or of the
// default keyer when inner is nil.
func NewScopedKeyer(inner Keyer, prefix string) Keyer {
	if inner == nil {
		inner = NewDefaultKeyer()
	}
	return &ScopedKeyer{inner: inner, prefix: prefix}
}

func (k *ScopedKeyer) RunKey(problemHash string, opts RunKeyOpts) string {
	return k.prefix + k.inner.RunKey(problemHash, opts)
}

func (k *ScopedKeyer) ArtifactKey(runKey string, opts ArtifactKeyOpts) string {
	return k.prefix + k.inner.ArtifactKey(runKey, opts)
}
