// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides YAML configuration loading for roomline.
//
// Configuration is loaded from a single file named by the --config flag
// (via [LoadFile]) or the ROOMLINE_CONFIG environment variable (via
// [Load]). There is no discovery: with neither set, [Load] returns
// [Default]. Values in the file override defaults field by field.
//
// Variable expansion is performed on path fields after loading:
// ${HOME} and ${VAR:-default} patterns are expanded. No other
// environment variables override config values.
//
// This package depends on no other roomline packages.
package config
