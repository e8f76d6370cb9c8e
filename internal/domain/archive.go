package domain

// Compression selects the pipeline stages an archive goes through before
// it is handed to its destination.
type Compression int

const (
	CompressionNone Compression = iota
	CompressionTar
	CompressionTarBZ2
)

// Extension returns the filename suffix the compression stage appends.
// The restore side strips the same suffix to walk the chain backwards.
func (c Compression) Extension() string {
	switch c {
	case CompressionTar:
		return ".tar"
	case CompressionTarBZ2:
		return ".tar.bz2"
	default:
		return ""
	}
}

func (c Compression) String() string {
	switch c {
	case CompressionTar:
		return "tar"
	case CompressionTarBZ2:
		return "tar.bz2"
	default:
		return "none"
	}
}

// Directory is one filesystem tree included in an archive. User and Group,
// when set, are applied to entries unpacked under Path during restore.
type Directory struct {
	Path  string
	User  string
	Group string
}

// Archive is one configured unit of backup work. It is built once from
// configuration and never mutated; the pipeline only derives per-run
// filenames from the name template.
type Archive struct {
	Name        string
	Compression Compression
	Encryption  Encryptor // nil when the archive is stored in the clear
	Destination Destination
	Directories []Directory
	Databases   []Database
}
