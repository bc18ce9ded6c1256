package model

// AudioChunk represents a chunk of raw audio data.
type AudioChunk []byte

// Transcript represents finalized speech-to-text output for one recording
// session.
type Transcript string
