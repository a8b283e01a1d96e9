// Copyright 2019 The Fuchsia Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package logger

import (
	"os"

	"github.com/vaibhawvipul/fluvio/lib/color"
)

var fatal = func() { os.Exit(1) }

var defaultLogger = NewLogger(InfoLevel, color.NewColor(color.ColorAuto), os.Stdout, os.Stderr, "")
