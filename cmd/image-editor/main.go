package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	imageeditor "github.com/menta2k/image-editor"
	"github.com/menta2k/image-editor/internal/config"
	"github.com/menta2k/image-editor/pkg/types"
)

func main() {
	var in, configPath string
	var x, y, width, height int
	var dims, verbose bool

	flag.StringVar(&in, "in", "", "input image path or URL (jpg/png/webp/gif/bmp/tiff)")
	flag.IntVar(&x, "x", 0, "crop offset x, in full-resolution pixels")
	flag.IntVar(&y, "y", 0, "crop offset y, in full-resolution pixels")
	flag.IntVar(&width, "width", 0, "crop width, in full-resolution pixels")
	flag.IntVar(&height, "height", 0, "crop height, in full-resolution pixels")
	flag.BoolVar(&dims, "dims", false, "print image dimensions instead of cropping")
	flag.StringVar(&configPath, "config", "", "path to JSON config file")
	flag.BoolVar(&verbose, "v", false, "enable debug logging")

	flag.Parse()

	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
	if !verbose {
		logger = logger.Level(zerolog.WarnLevel)
	}

	if in == "" {
		logger.Fatal().Msgf("usage: %s -in input.jpg|URL [-dims] [-x N -y N -width N -height N]", filepath.Base(os.Args[0]))
	}

	cfg := config.Default()
	if configPath != "" {
		loaded, err := config.LoadFromFile(configPath)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to load config")
		}
		if err := loaded.Validate(); err != nil {
			logger.Fatal().Err(err).Msg("invalid config")
		}
		cfg = loaded
	}

	editor := imageeditor.NewWithConfig(cfg, logger)
	defer editor.Close()

	if dims {
		d, err := editor.GetImageDimensions(in)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to get image dimensions")
		}
		out, _ := json.Marshal(d)
		fmt.Println(string(out))
		return
	}

	uri, err := editor.CropImage(context.Background(), in, types.CropRegion{
		Offset: types.Offset{X: x, Y: y},
		Size:   types.Size{Width: width, Height: height},
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("crop failed")
	}
	fmt.Println(uri)
}
