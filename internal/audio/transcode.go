package audio

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"os/exec"
	"path/filepath"
)

// Fixed output characteristics for provider submission. Mono at a low
// sample rate and bitrate shrinks the upload and normalizes input for
// speech recognition; fidelity is deliberately sacrificed.
const (
	transcodeChannels   = 1
	transcodeSampleRate = 22050
	transcodeBitrate    = "16k"
)

// ErrNoAudioStream means the downloaded file contains no decodable audio.
var ErrNoAudioStream = errors.New("input has no audio stream")

// Transcoder converts downloaded audio into the fixed submission format
// using the system ffmpeg/ffprobe binaries.
type Transcoder struct {
	debugDir string
}

func NewTranscoder(debugDir string) *Transcoder {
	return &Transcoder{debugDir: debugDir}
}

type probeResult struct {
	Streams []struct {
		CodecType string `json:"codec_type"`
	} `json:"streams"`
}

// probeHasAudio runs ffprobe and reports whether the file carries at
// least one audio stream.
func probeHasAudio(ctx context.Context, path string) (bool, error) {
	cmd := exec.CommandContext(ctx, "ffprobe",
		"-v", "error",
		"-show_streams",
		"-of", "json",
		path,
	)
	output, err := cmd.Output()
	if err != nil {
		return false, fmt.Errorf("ffprobe: %w", err)
	}
	return hasAudioStream(output)
}

func hasAudioStream(probeJSON []byte) (bool, error) {
	var result probeResult
	if err := json.Unmarshal(probeJSON, &result); err != nil {
		return false, fmt.Errorf("parse ffprobe output: %w", err)
	}
	for _, s := range result.Streams {
		if s.CodecType == "audio" {
			return true, nil
		}
	}
	return false, nil
}

// Transcode converts inputPath to mono 22.05kHz 16kbps MP3 in a new temp
// file and returns its path. The caller owns the output file.
func (t *Transcoder) Transcode(ctx context.Context, inputPath string) (string, error) {
	hasAudio, err := probeHasAudio(ctx, inputPath)
	if err != nil {
		return "", err
	}
	if !hasAudio {
		return "", ErrNoAudioStream
	}

	outPath := filepath.Join(os.TempDir(), "processed_"+filepath.Base(inputPath))
	cmd := exec.CommandContext(ctx, "ffmpeg", transcodeArgs(inputPath, outPath)...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		os.Remove(outPath)
		return "", fmt.Errorf("ffmpeg: %s: %w", string(output), err)
	}

	if t.debugDir != "" {
		copyToDebugDir(t.debugDir, outPath, "processed_")
	}

	if in, err := os.Stat(inputPath); err == nil {
		if out, err := os.Stat(outPath); err == nil && in.Size() > 0 {
			reduction := 100 * (1 - float64(out.Size())/float64(in.Size()))
			log.Printf("[audio] transcoded %s: %.2fMB -> %.2fMB (%.1f%% smaller)",
				filepath.Base(inputPath),
				float64(in.Size())/(1024*1024), float64(out.Size())/(1024*1024), reduction)
		}
	}

	return outPath, nil
}

func transcodeArgs(inputPath, outPath string) []string {
	return []string{
		"-hide_banner",
		"-loglevel", "error",
		"-i", inputPath,
		"-vn",
		"-ac", fmt.Sprintf("%d", transcodeChannels),
		"-ar", fmt.Sprintf("%d", transcodeSampleRate),
		"-b:a", transcodeBitrate,
		"-y",
		outPath,
	}
}
