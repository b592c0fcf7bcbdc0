// Copyright 2026 The Mobius Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package logging

import (
	"testing"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatterLayout(t *testing.T) {
	entry := &log.Entry{
		Time:    time.Date(2026, 1, 14, 20, 14, 4, 0, time.UTC),
		Level:   log.InfoLevel,
		Message: "routed message\n",
		Data:    log.Fields{"request_id": "a1b2c3d4", "intent": "price", "chat": 7},
	}

	out, err := (&Formatter{}).Format(entry)
	require.NoError(t, err)
	// Fields come out sorted by key, after the message.
	assert.Equal(t, "[2026-01-14 20:14:04] [a1b2c3d4] [info ] routed message chat=7 intent=price\n", string(out))
}

func TestFormatterWithoutRequestID(t *testing.T) {
	entry := &log.Entry{
		Time:    time.Date(2026, 1, 14, 20, 14, 4, 0, time.UTC),
		Level:   log.WarnLevel,
		Message: "upstream slow",
	}

	out, err := (&Formatter{}).Format(entry)
	require.NoError(t, err)
	assert.Equal(t, "[2026-01-14 20:14:04] [-       ] [warn ] upstream slow\n", string(out))
}
