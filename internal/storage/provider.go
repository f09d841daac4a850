// Package storage is a rooted local tree of skill folders: template
// directories read by seeding and export targets written by the CLI.
package storage

import "time"

// SkillFile is the entry document of every skill folder.
const SkillFile = "SKILL.md"

// File describes one regular file under the root.
type File struct {
	Path       string // slash-separated, relative to root
	Size       int64
	Executable bool
	UpdatedAt  time.Time
}

// Provider is the read/write surface seeding and export need.
type Provider interface {
	// List returns every visible regular file under dir, sorted by path.
	List(dir string) ([]File, error)
	// SkillRoots returns the directories below the root that hold a
	// SKILL.md, sorted; the root itself is never included.
	SkillRoots() ([]string, error)
	Read(path string) ([]byte, error)
	// Write replaces path atomically. Script resources get an executable mode.
	Write(path string, content []byte) error
}
