// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package schema defines the standard Matrix event types and content
// structures the client reconciles: room creation, naming, avatars,
// aliases, membership, tombstones, and messages. Event type constants
// are [ref.EventType] values; Go structs define the JSON content.
//
// [DecodeContent] converts the generic content map carried by a
// messaging.Event into one of these structs.
package schema
