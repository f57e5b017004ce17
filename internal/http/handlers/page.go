package handlers

import (
	"embed"
	"html/template"
	"net/http"

	"promptpix/internal/middleware"
)

//go:embed templates/index.html
var pageFS embed.FS

var pageTemplate = template.Must(template.ParseFS(pageFS, "templates/index.html"))

type pageLabels struct {
	Title          string
	Prompt         string
	Placeholder    string
	Width          string
	Height         string
	Steps          string
	Count          string
	Generate       string
	Generating     string
	ErrorHeading   string
	ErrorPrefix    string
	ImageHeading   string
	HostedHeading  string
	NoImage        string
	DefaultFailure string
}

var labelsByLocale = map[string]pageLabels{
	"en": {
		Title:          "Image Generator",
		Prompt:         "Prompt",
		Placeholder:    "Enter your prompt here",
		Width:          "Width",
		Height:         "Height",
		Steps:          "Steps",
		Count:          "Number of Images",
		Generate:       "Generate Image",
		Generating:     "Generating...",
		ErrorHeading:   "Error:",
		ErrorPrefix:    "An error occurred: ",
		ImageHeading:   "Generated Image:",
		HostedHeading:  "ImgBB URL:",
		NoImage:        "No image data received",
		DefaultFailure: "Failed to generate image",
	},
	"id": {
		Title:          "Pembuat Gambar",
		Prompt:         "Prompt",
		Placeholder:    "Tulis prompt di sini",
		Width:          "Lebar",
		Height:         "Tinggi",
		Steps:          "Langkah",
		Count:          "Jumlah Gambar",
		Generate:       "Buat Gambar",
		Generating:     "Sedang membuat...",
		ErrorHeading:   "Galat:",
		ErrorPrefix:    "Terjadi kesalahan: ",
		ImageHeading:   "Gambar Hasil:",
		HostedHeading:  "URL ImgBB:",
		NoImage:        "Tidak ada data gambar yang diterima",
		DefaultFailure: "Gagal membuat gambar",
	},
}

type pageData struct {
	Locale string
	Labels pageLabels
	Width  int
	Height int
	Steps  int
}

func labelsFor(locale string) pageLabels {
	if l, ok := labelsByLocale[locale]; ok {
		return l
	}
	return labelsByLocale["en"]
}

// Index serves the generator form.
func (a *App) Index(w http.ResponseWriter, r *http.Request) {
	locale := middleware.LocaleFromContext(r.Context())
	if _, ok := labelsByLocale[locale]; !ok {
		locale = "en"
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Content-Language", locale)
	data := pageData{Locale: locale, Labels: labelsFor(locale), Width: 512, Height: 512, Steps: 4}
	if err := pageTemplate.Execute(w, data); err != nil {
		a.Logger.Error().Err(err).Msg("render index page failed")
	}
}
