package git

import "github.com/mschirtzinger/mdboard/internal/vcs"

// init registers the git implementation so vcs.Open can construct it.
//
//	import _ "github.com/mschirtzinger/mdboard/internal/vcs/git"
func init() {
	vcs.Register(vcs.TypeGit, func(path string) (vcs.VCS, error) {
		return New(path)
	})
}
