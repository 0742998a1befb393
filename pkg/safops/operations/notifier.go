package operations

import "github.com/rs/zerolog"

// User-visible messages.
const (
	MsgSameLocation       = "Source and destination cannot be the same"
	MsgInvalidDestination = "Invalid destination"
	MsgNameTaken          = "A file or folder with that name already exists"
	MsgCopying            = "Copying…"
	MsgMoving             = "Moving…"
	MsgCopySuccess        = "Files copied successfully"
	MsgCopyPartial        = "Some files could not be copied"
	MsgMoveSuccess        = "Files moved successfully"
	MsgMovePartial        = "Some files could not be moved"
	MsgCopyMoveFailed     = "Copying failed"
	MsgErrorOccurred      = "An error occurred: %v"
	MsgCouldNotCreateFile = "Could not create file %s"
)

// Notifier shows transient, dismissible messages to the user.
type Notifier interface {
	Notify(msg string)
	Error(msg string, err error)
}

// LogNotifier writes messages to a logger.
type LogNotifier struct {
	logger zerolog.Logger
}

// NewLogNotifier creates a notifier logging at info and error level.
func NewLogNotifier(logger zerolog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Notify(msg string) {
	n.logger.Info().Msg(msg)
}

func (n *LogNotifier) Error(msg string, err error) {
	n.logger.Error().Err(err).Msg(msg)
}
