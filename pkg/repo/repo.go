package repo

import (
	"time"

	"github.com/vctrl/vctrl/pkg/object"
)

// MetaDirName is the name of the repository metadata directory.
const MetaDirName = ".vctrl"

// Repo represents an opened repository. It is resolved once by Init or
// Open and passed explicitly to every operation.
type Repo struct {
	RootDir  string        // working directory root
	VctrlDir string        // .vctrl/ directory
	Store    *object.Store // content-addressed object store

	// Now supplies commit timestamps. Defaults to time.Now.
	Now func() time.Time
}

func newRepo(root, metaDir string) *Repo {
	return &Repo{
		RootDir:  root,
		VctrlDir: metaDir,
		Store:    object.NewStore(metaDir),
		Now:      time.Now,
	}
}

func (r *Repo) now() time.Time {
	if r.Now == nil {
		return time.Now()
	}
	return r.Now()
}
