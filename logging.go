package helio

import "github.com/joeycumines/logiface"

// Logger is the structured logger accepted by WithLogger. A nil *Logger is
// valid and disables all logging: logiface builders are nil-receiver safe, so
// call sites chain unconditionally.
type Logger = logiface.Logger[logiface.Event]
