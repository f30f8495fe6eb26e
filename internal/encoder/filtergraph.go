package encoder

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/bigkaa/photoalbum/internal/slideshow"
)

// outputLabel — метка выхода графа фильтров для -map.
const outputLabel = "[v]"

// Frame — параметры кадра итогового видео.
type Frame struct {
	Width  int
	Height int
	FPS    int
	// FontFile — шрифт для drawtext; пустая строка — шрифт по умолчанию (fontconfig)
	FontFile string
}

// BuildFilterGraph строит описание -filter_complex для таймлайна.
// Результат детерминирован: одинаковый таймлайн даёт одинаковую строку.
//
// Вход [0:v] — склеенные по манифесту фотографии. Каждый кадр
// вписывается в Width×Height с чёрными полями, затем применяется
// эффект перехода, подписи и заголовок.
func BuildFilterGraph(tl *slideshow.Timeline, fr Frame) string {
	base := []string{
		fmt.Sprintf("scale=%d:%d:force_original_aspect_ratio=decrease", fr.Width, fr.Height),
		fmt.Sprintf("pad=%d:%d:(ow-iw)/2:(oh-ih)/2:color=black", fr.Width, fr.Height),
		"setsar=1",
		fmt.Sprintf("fps=%d", fr.FPS),
	}

	post := textOverlays(tl, fr)
	post = append(post, "format=yuv420p")

	switch tl.Transition {
	case slideshow.TransitionSlide:
		bg := fmt.Sprintf("color=c=black:s=%dx%d:r=%d:d=%s", fr.Width, fr.Height, fr.FPS, secs(tl.Total()))
		overlay := fmt.Sprintf("overlay=x='%s':y=0:shortest=1", slideExpr(tl, fr.Width))
		return "[0:v]" + strings.Join(base, ",") + "[fg];" +
			bg + "[bg];" +
			"[bg][fg]" + overlay + "," + strings.Join(post, ",") + outputLabel

	case slideshow.TransitionZoom:
		base = append(base, fmt.Sprintf(
			"zoompan=z='%s':x='iw/2-(iw/zoom/2)':y='ih/2-(ih/zoom/2)':d=1:s=%dx%d:fps=%d",
			zoomExpr(tl), fr.Width, fr.Height, fr.FPS))

	default: // fade
		base = append(base,
			fmt.Sprintf("fade=t=in:st=0:d=%s", secs(slideshow.TransitionLength)),
			fmt.Sprintf("fade=t=out:st=%s:d=%s", secs(tl.FadeOutStart()), secs(slideshow.TransitionLength)),
		)
	}

	return "[0:v]" + strings.Join(append(base, post...), ",") + outputLabel
}

// slideExpr — смещение по X: на каждой границе кадров новый кадр
// въезжает справа за время перехода.
func slideExpr(tl *slideshow.Timeline, width int) string {
	terms := make([]string, 0, len(tl.Segments))
	for i, seg := range tl.Segments {
		if seg.TransitionIn == nil {
			continue
		}
		length := min(seg.TransitionIn.Length, window(tl, i))
		start, end := secs(seg.Start), secs(seg.Start+length)
		terms = append(terms, fmt.Sprintf("if(between(t,%s,%s),%d*(%s-t)/%s,0)",
			start, end, width, end, secs(length)))
	}
	if len(terms) == 0 {
		return "0"
	}
	return strings.Join(terms, "+")
}

// zoomExpr — коэффициент зума: линейная рампа внутри окна каждого кадра
// от 1 до ZoomCeiling, ограниченная сверху.
func zoomExpr(tl *slideshow.Timeline) string {
	last := len(tl.Segments) - 1
	expr := progress(tl, last)
	for i := last - 1; i >= 0; i-- {
		expr = fmt.Sprintf("if(lt(it,%s),%s,%s)", secs(tl.Segments[i+1].Start), progress(tl, i), expr)
	}
	ceiling := strconv.FormatFloat(slideshow.ZoomCeiling, 'f', -1, 64)
	return fmt.Sprintf("min(1+%s*(%s),%s)",
		strconv.FormatFloat(slideshow.ZoomCeiling-1, 'f', -1, 64), expr, ceiling)
}

func progress(tl *slideshow.Timeline, i int) string {
	return fmt.Sprintf("(it-%s)/%s", secs(tl.Segments[i].Start), secs(window(tl, i)))
}

// window — время, в течение которого кадр i виден в склеенном потоке.
func window(tl *slideshow.Timeline, i int) time.Duration {
	if i+1 < len(tl.Segments) {
		return tl.Segments[i+1].Start - tl.Segments[i].Start
	}
	return tl.Segments[i].Duration
}

// textOverlays — заголовок поверх первого кадра и подписи кадров.
func textOverlays(tl *slideshow.Timeline, fr Frame) []string {
	var out []string
	if tl.Title != "" && len(tl.Segments) > 0 {
		out = append(out, drawtext(tl.Title, fr, 0, window(tl, 0),
			"x=(w-text_w)/2:y=(h-text_h)/2:fontsize=h/12"))
	}
	for i, seg := range tl.Segments {
		if seg.Caption == "" {
			continue
		}
		out = append(out, drawtext(seg.Caption, fr, seg.Start, seg.Start+window(tl, i),
			"x=(w-text_w)/2:y=h-text_h-h/15:fontsize=h/20:box=1:boxcolor=black@0.5:boxborderw=10"))
	}
	return out
}

func drawtext(text string, fr Frame, from, to time.Duration, layout string) string {
	opts := []string{"text=" + graphQuote(optionEscape(text)), "expansion=none", "fontcolor=white", layout}
	if fr.FontFile != "" {
		opts = append(opts, "fontfile="+graphQuote(optionEscape(fr.FontFile)))
	}
	opts = append(opts, fmt.Sprintf("enable='between(t,%s,%s)'", secs(from), secs(to)))
	return "drawtext=" + strings.Join(opts, ":")
}

// optionEscape экранирует значение опции фильтра (первый уровень).
func optionEscape(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `'`, `\'`, `:`, `\:`)
	return r.Replace(s)
}

// graphQuote заключает значение в кавычки графа фильтров (второй уровень).
func graphQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

func secs(d time.Duration) string {
	return formatSeconds(d)
}
