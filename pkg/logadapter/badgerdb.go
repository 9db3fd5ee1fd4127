// Package logadapter bridges third-party logger interfaces onto the
// service's zap logger, so everything lands in one stream.
package logadapter

import "go.uber.org/zap"

// Badger2Zap satisfies BadgerDB's Logger interface. Badger's levels map
// straight onto the embedded SugaredLogger, except Warningf which zap
// spells Warnf.
type Badger2Zap struct {
	*zap.SugaredLogger
}

// NewBadger2Zap wraps the given logger for use as a BadgerDB logger.
func NewBadger2Zap(logger *zap.Logger) *Badger2Zap {
	return &Badger2Zap{
		SugaredLogger: logger.Sugar(),
	}
}

func (logger *Badger2Zap) Warningf(template string, args ...interface{}) {
	logger.Warnf(template, args...)
}
