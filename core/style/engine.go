// Package style 提供图像风格化引擎
//
// 将任意尺寸的源图像转换为固定尺寸的复古风格正方形图像：
// 覆盖式裁切 → 像素化 → 暖色调叠加 → 扫描线 → 边框与标签 → PNG编码
//
// 整条管线为纯CPU计算，相同输入与参数下输出逐像素一致
package style

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"

	_ "image/gif"
	_ "image/jpeg"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
	_ "golang.org/x/image/webp"

	"github.com/retromint/v1/pkg/ux/ui"
)

// Options 风格化参数
//
// 所有参数均有规范默认值（DefaultOptions），修改参数会改变输出，
// 但同一组参数下管线保持确定性
type Options struct {
	TargetSize int     `json:"target_size"` // 输出边长（正方形）
	PixelScale float64 `json:"pixel_scale"` // 像素化中间缓冲比例 (0,1]

	TintColor color.NRGBA `json:"-"` // 暖色叠加层（overlay混合）
	LiftColor color.NRGBA `json:"-"` // 近白提亮层（multiply混合）

	ScanlineHeight int     `json:"scanline_height"` // 扫描线高度(px)
	ScanlinePeriod int     `json:"scanline_period"` // 扫描线垂直周期(px)
	ScanlineAlpha  float64 `json:"scanline_alpha"`  // 扫描线不透明度

	BorderWidth int         `json:"border_width"` // 边框线宽(px)
	BorderInset int         `json:"border_inset"` // 边框内缩距离(px)
	BorderColor color.NRGBA `json:"-"`

	Label      string      `json:"label"`      // 左上角标签文字
	LabelSize  float64     `json:"label_size"` // 标签字号(px)
	LabelX     int         `json:"label_x"`    // 标签基线X坐标
	LabelY     int         `json:"label_y"`    // 标签基线Y坐标
	LabelColor color.NRGBA `json:"-"`
}

// DefaultOptions 返回规范风格化参数
func DefaultOptions() *Options {
	return &Options{
		TargetSize:     768,
		PixelScale:     0.15,
		TintColor:      color.NRGBA{R: 255, G: 140, B: 0, A: 46},    // rgba(255,140,0,0.18)
		LiftColor:      color.NRGBA{R: 255, G: 255, B: 255, A: 15},  // rgba(255,255,255,0.06)
		ScanlineHeight: 2,
		ScanlinePeriod: 4,
		ScanlineAlpha:  0.25,
		BorderWidth:    16,
		BorderInset:    8,
		BorderColor:    color.NRGBA{R: 0xf5, G: 0x9e, B: 0x0b, A: 255}, // #f59e0b
		Label:          "RETRO MODE",
		LabelSize:      36,
		LabelX:         24,
		LabelY:         56,
		LabelColor:     color.NRGBA{R: 0xfd, G: 0xe6, B: 0x8a, A: 255}, // #fde68a
	}
}

// StyledImage 风格化结果
type StyledImage struct {
	PNG    []byte // 无损编码的输出图像
	Width  int
	Height int
}

// DataURI 返回可内嵌的 data URI 表示
func (s *StyledImage) DataURI() string {
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(s.PNG)
}

// Engine 图像风格化引擎
type Engine struct {
	opts   *Options
	face   font.Face
	logger ui.Logger
}

// NewEngine 创建风格化引擎
//
// opts为nil时使用规范默认参数；logger可为nil
func NewEngine(opts *Options, logger ui.Logger) (*Engine, error) {
	if opts == nil {
		opts = DefaultOptions()
	}
	if opts.TargetSize <= 0 {
		return nil, fmt.Errorf("invalid target size: %d", opts.TargetSize)
	}
	if opts.PixelScale <= 0 || opts.PixelScale > 1 {
		return nil, fmt.Errorf("invalid pixel scale: %f", opts.PixelScale)
	}

	ft, err := opentype.Parse(gobold.TTF)
	if err != nil {
		return nil, fmt.Errorf("parse label font: %w", err)
	}
	face, err := opentype.NewFace(ft, &opentype.FaceOptions{
		Size:    opts.LabelSize,
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return nil, fmt.Errorf("create label face: %w", err)
	}

	return &Engine{
		opts:   opts,
		face:   face,
		logger: ui.OrNoop(logger),
	}, nil
}

// Generate 执行风格化管线
//
// 流程：
//  1. 解码源图像（失败即整体失败，不产出半成品）
//  2. 覆盖式裁切到正方形
//  3. 像素化（小缓冲平滑缩小 + 近邻放大）
//  4. 暖色overlay + 近白multiply 色调处理（顺序固定）
//  5. 扫描线
//  6. 边框与标签
//  7. PNG编码
func (e *Engine) Generate(ctx context.Context, source []byte) (*StyledImage, error) {
	src, format, err := image.Decode(bytes.NewReader(source))
	if err != nil {
		return nil, fmt.Errorf("decode source image: %w", err)
	}
	e.logger.Debugf("源图像解码完成: format=%s bounds=%v", format, src.Bounds())

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	target := e.opts.TargetSize

	// 像素化中间缓冲（最小8px，避免极端参数下退化为空图）
	smallSize := int(math.Floor(float64(target) * e.opts.PixelScale))
	if smallSize < 8 {
		smallSize = 8
	}

	// 覆盖式裁切：先换算出源图中映射到目标正方形的区域
	srcRect := coverRect(src.Bounds(), target, target)

	// 平滑缩小到中间缓冲
	small := image.NewNRGBA(image.Rect(0, 0, smallSize, smallSize))
	draw.ApproxBiLinear.Scale(small, small.Bounds(), src, srcRect, draw.Src, nil)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// 关闭平滑放大回目标尺寸，产生块状像素
	dst := image.NewNRGBA(image.Rect(0, 0, target, target))
	draw.NearestNeighbor.Scale(dst, dst.Bounds(), small, small.Bounds(), draw.Src, nil)

	// 色调处理：overlay在前、multiply在后，顺序影响最终色彩
	blendFill(dst, e.opts.TintColor, blendOverlay)
	blendFill(dst, e.opts.LiftColor, blendMultiply)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	e.drawScanlines(dst)
	e.drawBorder(dst)
	e.drawLabel(dst)

	var buf bytes.Buffer
	if err := png.Encode(&buf, dst); err != nil {
		return nil, fmt.Errorf("encode styled image: %w", err)
	}

	e.logger.Infof("风格化完成: %dx%d, %d bytes", target, target, buf.Len())

	return &StyledImage{
		PNG:    buf.Bytes(),
		Width:  target,
		Height: target,
	}, nil
}

// coverFit 计算覆盖式缩放参数
//
// 返回缩放系数与目标坐标系下的偏移量：
//   - scale = max(targetW/srcW, targetH/srcH)，保证源图完全覆盖目标
//   - offset = (target - scaled)/2，居中裁切（溢出方向上为负值）
func coverFit(srcW, srcH, targetW, targetH int) (scale, offsetX, offsetY float64) {
	scale = math.Max(float64(targetW)/float64(srcW), float64(targetH)/float64(srcH))
	offsetX = (float64(targetW) - float64(srcW)*scale) / 2
	offsetY = (float64(targetH) - float64(srcH)*scale) / 2
	return scale, offsetX, offsetY
}

// coverRect 将覆盖式缩放参数换算为源图坐标系下的裁切区域
func coverRect(src image.Rectangle, targetW, targetH int) image.Rectangle {
	scale, offsetX, offsetY := coverFit(src.Dx(), src.Dy(), targetW, targetH)

	x0 := -offsetX / scale
	y0 := -offsetY / scale
	x1 := x0 + float64(targetW)/scale
	y1 := y0 + float64(targetH)/scale

	return image.Rect(
		src.Min.X+int(math.Round(x0)),
		src.Min.Y+int(math.Round(y0)),
		src.Min.X+int(math.Round(x1)),
		src.Min.Y+int(math.Round(y1)),
	)
}

// blendFunc 单通道混合函数，输入输出均为[0,1]
type blendFunc func(backdrop, source float64) float64

// blendOverlay overlay混合：提升对比度
func blendOverlay(b, s float64) float64 {
	if b <= 0.5 {
		return 2 * b * s
	}
	return 1 - 2*(1-b)*(1-s)
}

// blendMultiply multiply混合：变暗
func blendMultiply(b, s float64) float64 {
	return b * s
}

// blendFill 以指定混合模式将半透明纯色覆盖到整幅图像
//
// 等价于canvas的 globalCompositeOperation=<mode> + fillRect(全幅)：
// out = (1-a)*backdrop + a*Blend(backdrop, color)
func blendFill(img *image.NRGBA, c color.NRGBA, blend blendFunc) {
	a := float64(c.A) / 255
	sr := float64(c.R) / 255
	sg := float64(c.G) / 255
	sb := float64(c.B) / 255

	bounds := img.Bounds()
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		row := img.Pix[(y-bounds.Min.Y)*img.Stride:]
		for x := 0; x < bounds.Dx(); x++ {
			i := x * 4
			br := float64(row[i]) / 255
			bg := float64(row[i+1]) / 255
			bb := float64(row[i+2]) / 255

			row[i] = clamp8((1-a)*br + a*blend(br, sr))
			row[i+1] = clamp8((1-a)*bg + a*blend(bg, sg))
			row[i+2] = clamp8((1-a)*bb + a*blend(bb, sb))
		}
	}
}

// clamp8 将[0,1]浮点值量化为uint8
func clamp8(v float64) uint8 {
	if v <= 0 {
		return 0
	}
	if v >= 1 {
		return 255
	}
	return uint8(math.Round(v * 255))
}

// drawScanlines 绘制横向扫描线
func (e *Engine) drawScanlines(img *image.NRGBA) {
	a := e.opts.ScanlineAlpha
	bounds := img.Bounds()

	for y := bounds.Min.Y; y < bounds.Max.Y; y += e.opts.ScanlinePeriod {
		for dy := 0; dy < e.opts.ScanlineHeight && y+dy < bounds.Max.Y; dy++ {
			row := img.Pix[(y+dy-bounds.Min.Y)*img.Stride:]
			for x := 0; x < bounds.Dx(); x++ {
				i := x * 4
				// 黑色以固定不透明度叠加
				row[i] = clamp8((1 - a) * float64(row[i]) / 255)
				row[i+1] = clamp8((1 - a) * float64(row[i+1]) / 255)
				row[i+2] = clamp8((1 - a) * float64(row[i+2]) / 255)
			}
		}
	}
}

// drawBorder 绘制内缩实线边框
//
// 等价于canvas的 strokeRect(inset, inset, w-2*inset, h-2*inset) 配合
// lineWidth=width：线条以路径为中心向两侧各延伸width/2
func (e *Engine) drawBorder(img *image.NRGBA) {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	half := e.opts.BorderWidth / 2

	outer := e.opts.BorderInset - half // 规范参数下正好为0（贴边）
	if outer < 0 {
		outer = 0
	}
	inner := e.opts.BorderInset + half

	fillRect := func(x0, y0, x1, y1 int) {
		for y := y0; y < y1; y++ {
			row := img.Pix[y*img.Stride:]
			for x := x0; x < x1; x++ {
				i := x * 4
				row[i] = e.opts.BorderColor.R
				row[i+1] = e.opts.BorderColor.G
				row[i+2] = e.opts.BorderColor.B
				row[i+3] = 255
			}
		}
	}

	fillRect(outer, outer, w-outer, inner)     // 上
	fillRect(outer, h-inner, w-outer, h-outer) // 下
	fillRect(outer, inner, inner, h-inner)     // 左
	fillRect(w-inner, inner, w-outer, h-inner) // 右
}

// drawLabel 在左上角绘制标签文字
func (e *Engine) drawLabel(img *image.NRGBA) {
	if e.opts.Label == "" {
		return
	}

	drawer := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(e.opts.LabelColor),
		Face: e.face,
		Dot:  fixed.P(e.opts.LabelX, e.opts.LabelY),
	}
	drawer.DrawString(e.opts.Label)
}
