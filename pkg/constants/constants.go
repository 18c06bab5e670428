// Package constants holds fixed identifiers shared across the engine:
// the work-branch naming scheme, the on-disk workspace layout, and the
// prelude header every compile invocation force-includes.
package constants

import "fmt"

// WorkBranch is the single, non-configurable branch name every repository
// accumulates accepted refactorings on. Configurable work branches are
// explicitly not supported.
const WorkBranch = "levelup-work"

// AtomicBranchPrefix names the per-request ephemeral branch that carries
// individual accepted commits before they are squashed onto WorkBranch.
const AtomicBranchPrefix = WorkBranch + "-atomic-"

// AtomicBranchName returns the ephemeral atomic branch name for a request.
func AtomicBranchName(requestID string) string {
	return AtomicBranchPrefix + requestID
}

// ReposFile is the name of the repository catalogue file under the
// workspace root.
const ReposFile = "repos.json"

// ReposDir is the subdirectory under the workspace root holding repo clones.
const ReposDir = "repos"

// DoxygenOutputDir is the repo-relative path the symbol extractor writes
// generated XML to.
const DoxygenOutputDir = "doxygen_output"

// DoxygenXMLSubdir is the subdirectory of DoxygenOutputDir holding
// macro-unexpanded XML, the only mode the extractor is allowed to produce.
const DoxygenXMLSubdir = "xml_unexpanded"

// PreludeHeaderName is the project-global header force-included on every
// compile invocation. It provides a neutral unique_ptr alias used by some
// refactorings.
const PreludeHeaderName = "LevelUp.h"

// RepoPath returns the local clone path for a repository name under the
// given workspace root.
func RepoPath(workspace, name string) string {
	return fmt.Sprintf("%s/%s/%s", workspace, ReposDir, name)
}

// DoxygenXMLPath returns the path the extractor writes unexpanded XML to,
// relative to a repository's clone path.
func DoxygenXMLPath(repoPath string) string {
	return fmt.Sprintf("%s/%s/%s", repoPath, DoxygenOutputDir, DoxygenXMLSubdir)
}
