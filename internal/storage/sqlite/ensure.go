package sqlite

import "github.com/salesarmbiz-Dev/aimacademy/internal/player"

// Ensure SQLite stores implement the storage interfaces.
var _ player.Store = (*PlayerStore)(nil)
