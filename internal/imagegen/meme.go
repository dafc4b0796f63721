package imagegen

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"os"
	"strings"

	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"

	xerrors "NewsCrew/internal/errors"
)

// MaxTemplateSide 是模板图片允许的最大边长（像素）。
const MaxTemplateSide = 4096

// MemeRenderer 在模板图片的顶部和底部绘制带描边的白色文字。
type MemeRenderer struct {
	face    font.Face
	maxSide int
}

// NewMemeRenderer 使用内置点阵字体创建渲染器。
func NewMemeRenderer() *MemeRenderer {
	return &MemeRenderer{face: basicfont.Face7x13, maxSide: MaxTemplateSide}
}

// LoadMemeRenderer 从 TTF/OTF 文件加载字体，path 为空时退回内置字体。
func LoadMemeRenderer(path string) (*MemeRenderer, error) {
	if strings.TrimSpace(path) == "" {
		return NewMemeRenderer(), nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeConfigInvalid, err, "读取字体文件失败")
	}
	parsed, err := opentype.Parse(raw)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeConfigInvalid, err, "解析字体文件失败")
	}
	face, err := opentype.NewFace(parsed, &opentype.FaceOptions{Size: 48, DPI: 72, Hinting: font.HintingFull})
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeConfigInvalid, err, "创建字体失败")
	}
	return &MemeRenderer{face: face, maxSide: MaxTemplateSide}, nil
}

// Render 解码模板（PNG/JPEG/GIF），绘制文字后编码为 PNG。
func (m *MemeRenderer) Render(template []byte, top, bottom string) ([]byte, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(template))
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeInvalidArgument, err, "无法解析模板图片")
	}
	// 先看头部声明的尺寸，避免按声明尺寸分配巨大的画布。
	limit := m.maxSide
	if limit <= 0 {
		limit = MaxTemplateSide
	}
	if cfg.Width <= 0 || cfg.Height <= 0 || cfg.Width > limit || cfg.Height > limit {
		return nil, xerrors.New(xerrors.CodeInvalidArgument,
			fmt.Sprintf("模板图片尺寸 %dx%d 超出限制 %dx%d", cfg.Width, cfg.Height, limit, limit))
	}
	src, _, err := image.Decode(bytes.NewReader(template))
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeInvalidArgument, err, "无法解析模板图片")
	}
	bounds := src.Bounds()
	canvas := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(canvas, canvas.Bounds(), src, bounds.Min, draw.Src)

	margin := canvas.Bounds().Dy() / 30
	if line := strings.TrimSpace(top); line != "" {
		m.drawCaption(canvas, strings.ToUpper(line), margin, true)
	}
	if line := strings.TrimSpace(bottom); line != "" {
		m.drawCaption(canvas, strings.ToUpper(line), margin, false)
	}

	var out bytes.Buffer
	if err := png.Encode(&out, canvas); err != nil {
		return nil, xerrors.Wrap(xerrors.CodeUnknown, err, "编码 PNG 失败")
	}
	return out.Bytes(), nil
}

// drawCaption 先把文字渲染到小画布，再缩放到图片宽度的 90% 以内、高度约为图片的 1/8。
func (m *MemeRenderer) drawCaption(canvas *image.RGBA, text string, margin int, atTop bool) {
	line := renderLine(m.face, text)
	lw, lh := line.Bounds().Dx(), line.Bounds().Dy()
	if lw == 0 || lh == 0 {
		return
	}
	cw, ch := canvas.Bounds().Dx(), canvas.Bounds().Dy()

	scale := float64(ch) / 8 / float64(lh)
	if maxW := float64(cw) * 0.9; float64(lw)*scale > maxW {
		scale = maxW / float64(lw)
	}
	w, h := int(float64(lw)*scale), int(float64(lh)*scale)
	if w <= 0 || h <= 0 {
		return
	}
	x := (cw - w) / 2
	y := margin
	if !atTop {
		y = ch - margin - h
	}
	xdraw.ApproxBiLinear.Scale(canvas, image.Rect(x, y, x+w, y+h), line, line.Bounds(), xdraw.Over, nil)
}

var outline = []image.Point{{-1, -1}, {0, -1}, {1, -1}, {-1, 0}, {1, 0}, {-1, 1}, {0, 1}, {1, 1}}

func renderLine(face font.Face, text string) *image.RGBA {
	drawer := &font.Drawer{Face: face}
	width := drawer.MeasureString(text).Ceil()
	fm := face.Metrics()
	ascent := fm.Ascent.Ceil()
	height := ascent + fm.Descent.Ceil()
	const pad = 2

	img := image.NewRGBA(image.Rect(0, 0, width+2*pad, height+2*pad))
	drawer.Dst = img
	drawer.Src = image.NewUniform(color.Black)
	for _, off := range outline {
		drawer.Dot = fixed.P(pad+off.X, pad+ascent+off.Y)
		drawer.DrawString(text)
	}
	drawer.Src = image.NewUniform(color.White)
	drawer.Dot = fixed.P(pad, pad+ascent)
	drawer.DrawString(text)
	return img
}
