package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-audio/wav"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"
)

func main() {
	server := pflag.String("server", "http://localhost:8080", "Interview assistant base URL")
	audioFile := pflag.String("audio", "", "Path to a WAV or MP3 question")
	text := pflag.String("text", "", "Typed question")
	timeout := pflag.Duration("timeout", 5*time.Minute, "Request timeout")
	pflag.Parse()

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})

	if (*audioFile == "") == (*text == "") {
		log.Fatal().Msg("Provide exactly one of --audio or --text")
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if *audioFile != "" {
		if err := writeAudio(mw, *audioFile); err != nil {
			log.Fatal().Err(err).Msg("Failed to attach audio")
		}
	} else {
		mw.WriteField("text", *text)
	}
	mw.Close()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(*server, "/")+"/interview", &body)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to build request")
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	start := time.Now()
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		log.Fatal().Err(err).Msg("Request failed")
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		log.Fatal().Int("status", resp.StatusCode).Str("body", string(raw)).Msg("Interview failed")
	}

	var out struct {
		Response struct {
			Text     string `json:"text"`
			AudioURL string `json:"audio_url"`
		} `json:"response"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		log.Fatal().Err(err).Msg("Unexpected response body")
	}
	log.Info().Dur("elapsed", time.Since(start)).Msg("Interview completed")
	fmt.Println(out.Response.Text)
	if out.Response.AudioURL != "" {
		fmt.Println(out.Response.AudioURL)
	}
}

// writeAudio attaches path, logging the WAV header when it is one.
func writeAudio(mw *multipart.Writer, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	if strings.EqualFold(filepath.Ext(path), ".wav") {
		d := wav.NewDecoder(f)
		if !d.IsValidFile() {
			return fmt.Errorf("%s is not a valid WAV file", path)
		}
		dur, _ := d.Duration()
		log.Info().
			Uint32("sampleRate", d.SampleRate).
			Uint16("channels", d.NumChans).
			Uint16("bitDepth", d.BitDepth).
			Dur("duration", dur).
			Msg("WAV file")
		if _, err := f.Seek(0, io.SeekStart); err != nil {
			return err
		}
	}

	fw, err := mw.CreateFormFile("audio", filepath.Base(path))
	if err != nil {
		return err
	}
	n, err := io.Copy(fw, f)
	if err != nil {
		return err
	}
	log.Info().Int64("bytes", n).Str("file", path).Msg("Attached audio")
	return nil
}
