package retro

import talariaerrors "github.com/talaria-db/talaria/internal/errors"

var (
	errNoManifest         = talariaerrors.NotFoundError("no manifest exists at or before the requested sequence time", nil)
	errNoTaxonomySnapshot = talariaerrors.NotFoundError("no taxonomy snapshot exists at or before the requested taxonomy time", nil)
)
