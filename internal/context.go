package internal

import (
	"context"

	"github.com/rs/zerolog"
)

type ctx string

var (
	ctxData ctx = "syncv3_client_data"
)

// logging metadata for a single sliding sync round trip
type data struct {
	since     string
	next      string
	txnID     string
	numRooms  int
	numLists  int
	isRestart bool
}

// prepare a request context so it can contain round trip info
func RequestContext(ctx context.Context) context.Context {
	d := &data{
		numRooms: -1,
		numLists: -1,
	}
	return context.WithValue(ctx, ctxData, d)
}

// mark this round trip as the first one after an abort. Need to have called RequestContext first.
func SetRequestContextRestart(ctx context.Context, since, txnID string, isRestart bool) {
	d := ctx.Value(ctxData)
	if d == nil {
		return
	}
	da := d.(*data)
	da.since = since
	da.txnID = txnID
	da.isRestart = isRestart
}

func SetRequestContextResponseInfo(ctx context.Context, next string, numRooms, numLists int) {
	d := ctx.Value(ctxData)
	if d == nil {
		return
	}
	da := d.(*data)
	da.next = next
	da.numRooms = numRooms
	da.numLists = numLists
}

func DecorateLogger(ctx context.Context, l *zerolog.Event) *zerolog.Event {
	d := ctx.Value(ctxData)
	if d == nil {
		return l
	}
	da := d.(*data)
	if da.since != "" {
		l = l.Str("p", da.since)
	}
	if da.next != "" {
		l = l.Str("q", da.next)
	}
	if da.txnID != "" {
		l = l.Str("t", da.txnID)
	}
	if da.numRooms >= 0 {
		l = l.Int("r", da.numRooms)
	}
	if da.numLists >= 0 {
		l = l.Int("l", da.numLists)
	}
	if da.isRestart {
		l = l.Bool("restart", true)
	}
	return l
}
