package video

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"frame-capture/internal/domain"
)

// probeOutput часть вывода ffprobe -show_format -show_streams -of json
type probeOutput struct {
	Streams []probeStream `json:"streams"`
	Format  struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

type probeStream struct {
	CodecType    string `json:"codec_type"`
	Width        int    `json:"width"`
	Height       int    `json:"height"`
	NbFrames     string `json:"nb_frames"`
	AvgFrameRate string `json:"avg_frame_rate"`
	RFrameRate   string `json:"r_frame_rate"`
	Duration     string `json:"duration"`
}

// parseProbe извлекает параметры первого видеопотока
func parseProbe(path, raw string) (domain.VideoInfo, error) {
	var out probeOutput
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return domain.VideoInfo{}, fmt.Errorf("разбор вывода ffprobe: %w", err)
	}

	var vs *probeStream
	for i := range out.Streams {
		if out.Streams[i].CodecType == "video" {
			vs = &out.Streams[i]
			break
		}
	}
	if vs == nil {
		return domain.VideoInfo{}, fmt.Errorf("в %q нет видеопотока", path)
	}
	if vs.Width <= 0 || vs.Height <= 0 {
		return domain.VideoInfo{}, fmt.Errorf("некорректный размер кадра %dx%d", vs.Width, vs.Height)
	}

	fps := parseRate(vs.AvgFrameRate)
	if fps <= 0 {
		fps = parseRate(vs.RFrameRate)
	}

	frames, _ := strconv.Atoi(strings.TrimSpace(vs.NbFrames))
	if frames <= 0 && fps > 0 {
		duration := parseFloat(vs.Duration)
		if duration <= 0 {
			duration = parseFloat(out.Format.Duration)
		}
		frames = int(math.Round(duration * fps))
	}
	if frames <= 0 {
		return domain.VideoInfo{}, fmt.Errorf("не удалось определить число кадров в %q", path)
	}

	return domain.VideoInfo{
		Path:       path,
		FrameCount: frames,
		FPS:        fps,
		Width:      vs.Width,
		Height:     vs.Height,
	}, nil
}

// parseRate разбирает дробь вида "30000/1001"
func parseRate(s string) float64 {
	num, den, found := strings.Cut(strings.TrimSpace(s), "/")
	if !found {
		return parseFloat(num)
	}
	n, d := parseFloat(num), parseFloat(den)
	if d == 0 {
		return 0
	}
	return n / d
}

func parseFloat(s string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
