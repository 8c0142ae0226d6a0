// Package audio plays the celebration chime.
// It uses the beep library to decode WAV, OGG and MP3 files
// and plays them at a configured volume.
package audio
