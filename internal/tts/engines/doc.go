// Package engines contains implementations of the tts.Synthesizer
// interface: gTTS (gtts-cli), Google Cloud Text-to-Speech, Piper (offline)
// and an in-process mock.
package engines
