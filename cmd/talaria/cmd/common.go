package cmd

import (
	"github.com/talaria-db/talaria/internal/dbref"
)

// splitDatabaseRef parses "source/dataset" (ignoring any @version or
// :profile suffix) into its two components for commands that operate
// on a whole database rather than one specific version.
func splitDatabaseRef(s string) (source, dataset string, err error) {
	ref, err := dbref.Parse(s)
	if err != nil {
		return "", "", err
	}
	return ref.Source, ref.Dataset, nil
}
