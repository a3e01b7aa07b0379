package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/term"

	"github.com/cbegin/drumkit-go"
)

func main() {
	var (
		sampleRate  = flag.Int("sample-rate", 48000, "output sample rate")
		backendName = flag.String("backend", "ebiten", "audio backend: ebiten|oto|portaudio")
		kitDir      = flag.String("kit", "", "directory of .wav files, one pad per file")
		midiPath    = flag.String("midi", "", "Standard MIDI File to sequence (keys from 35 map to pads in order)")
		bpm         = flag.Float64("bpm", 120, "tempo for the built-in pattern and metronome")
		metronome   = flag.Bool("metronome", false, "enable the metronome")
		seconds     = flag.Float64("seconds", 8, "play for N seconds (0 = until interrupted)")
		renderPath  = flag.String("render", "", "render offline to this WAV file instead of playing")
		recordPath  = flag.String("record", "", "record the live output to this WAV file")
		interactive = flag.Bool("interactive", false, "play pads from the keyboard")
		volume      = flag.Float64("volume", 1.0, "master volume scalar")
		voices      = flag.Int("voices", 128, "voice cap (0 = unlimited)")
	)
	flag.Parse()

	backend, err := parseBackend(*backendName)
	if err != nil {
		log.Fatal(err)
	}
	e, err := drumkit.New(*sampleRate,
		drumkit.WithBackend(backend),
		drumkit.WithMaxVoices(*voices),
		drumkit.WithMasterGain(*volume),
	)
	if err != nil {
		log.Fatal(err)
	}
	defer e.Close()

	if err := e.LoadSample("click.hi", 1, *sampleRate, clickSample(*sampleRate, 1760)); err != nil {
		log.Fatal(err)
	}
	if err := e.LoadSample("click.lo", 1, *sampleRate, clickSample(*sampleRate, 880)); err != nil {
		log.Fatal(err)
	}
	if err := e.SetMetronomeState(*metronome, *bpm, 4, 4, "click.hi", "click.lo"); err != nil {
		log.Fatal(err)
	}

	var k *kit
	if *kitDir != "" {
		if k, err = loadKit(e, *kitDir); err != nil {
			log.Fatal(err)
		}
		seq, err := sequenceFor(k, *midiPath, *bpm)
		if err != nil {
			log.Fatal(err)
		}
		if err := e.LoadSequence(seq); err != nil {
			log.Fatal(err)
		}
		if !*interactive {
			if err := e.PlaySequence(); err != nil {
				log.Fatal(err)
			}
		}
	}

	if *renderPath != "" {
		frames := int(*seconds * float64(*sampleRate))
		if err := e.RenderOfflineWAV(*renderPath, frames, 512); err != nil {
			log.Fatal(err)
		}
		fmt.Printf("rendered %d frames to %s\n", frames, *renderPath)
		return
	}

	if *recordPath != "" {
		if err := e.StartRecording(*recordPath); err != nil {
			log.Fatal(err)
		}
	}
	if err := e.Start(); err != nil {
		log.Fatal(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	g, ctx := errgroup.WithContext(ctx)
	if *seconds > 0 && !*interactive {
		g.Go(func() error {
			select {
			case <-time.After(time.Duration(*seconds * float64(time.Second))):
			case <-ctx.Done():
			}
			return nil
		})
	} else {
		g.Go(func() error {
			<-ctx.Done()
			return nil
		})
	}
	if *interactive {
		g.Go(func() error {
			defer stop()
			return runInteractive(ctx, e, k)
		})
	}
	if err := g.Wait(); err != nil {
		log.Print(err)
	}

	if *recordPath != "" {
		path, err := e.StopRecording()
		if err != nil {
			log.Fatal(err)
		}
		fmt.Printf("recorded %s\n", path)
	}
}

func sequenceFor(k *kit, midiPath string, bpm float64) (*drumkit.Sequence, error) {
	if midiPath == "" {
		return patternFor(k, bpm), nil
	}
	f, err := os.Open(midiPath)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return drumkit.ImportSMF(f, k.midi)
}

// runInteractive puts the terminal in raw mode and maps key presses to pad
// triggers until q is pressed or ctx ends.
func runInteractive(ctx context.Context, e *drumkit.Engine, k *kit) error {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return fmt.Errorf("-interactive needs a terminal on stdin")
	}
	old, err := term.MakeRaw(fd)
	if err != nil {
		return err
	}
	defer term.Restore(fd, old)

	fmt.Print("pads: ")
	if k != nil {
		for i, id := range k.pads {
			if i < len(padKeys) {
				fmt.Printf("[%c] %s  ", padKeys[i], id)
			}
		}
	}
	fmt.Print("\r\n[space] sequence  [m] metronome  [x] stop all  [Q/esc] quit\r\n")

	keys := make(chan byte)
	go func() {
		buf := make([]byte, 1)
		for {
			n, err := os.Stdin.Read(buf)
			if err != nil {
				close(keys)
				return
			}
			if n == 1 {
				keys <- buf[0]
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case b, ok := <-keys:
			if !ok {
				return nil
			}
			switch b {
			case 'Q', 0x1b, 0x03:
				return nil
			case ' ':
				if e.SequencePlaying() {
					e.StopSequence()
				} else {
					_ = e.PlaySequence()
				}
			case 'm':
				st := e.MetronomeState()
				_ = e.SetMetronomeState(!st.Enabled, st.BPM, st.Numerator, st.Denominator, st.PrimarySampleID, st.SecondarySampleID)
			case 'x':
				e.StopAll()
			default:
				if k == nil {
					continue
				}
				if id, ok := k.keys[b]; ok {
					ps, _ := e.PadSettings(id)
					_, _ = e.TriggerPadSample(drumkit.ManualTrigger{PadID: id, SampleID: id, Velocity: 127, Volume: ps.Volume, Pan: ps.Pan})
				}
			}
		}
	}
}

func parseBackend(name string) (drumkit.Backend, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "ebiten", "":
		return drumkit.BackendEbiten, nil
	case "oto":
		return drumkit.BackendOto, nil
	case "portaudio":
		return drumkit.BackendPortAudio, nil
	default:
		return "", fmt.Errorf("invalid -backend %q (expected ebiten|oto|portaudio)", name)
	}
}
