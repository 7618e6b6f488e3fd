package web

import (
	"context"
	"fmt"
	"io"

	"github.com/a-h/templ"

	"github.com/JonMunkholm/certforge/internal/core"
)

// IndexParams feeds the upload form.
type IndexParams struct {
	LayoutKeys  []string
	MaxFileSize int64
	MaxRows     int
}

// IndexPage is the upload form. It posts to /api/generate and /api/preview
// with fetch and saves the response as a download.
func IndexPage(p IndexParams) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if _, err := io.WriteString(w, pageHead); err != nil {
			return err
		}
		fmt.Fprintf(w, `<p class="hint">Up to %d recipients per batch, %s per file. CSV or XLSX with a Name column.</p>`,
			p.MaxRows, humanBytes(p.MaxFileSize))

		io.WriteString(w, `<form id="gen" enctype="multipart/form-data">`)
		io.WriteString(w, `<label>Recipients <input type="file" name="file" accept=".csv,.tsv,.txt,.xlsx" required></label>`)
		io.WriteString(w, `<label>Template image <input type="file" name="template" accept="image/*" required></label>`)

		io.WriteString(w, `<label>Saved layout <select name="template_key"><option value="">Defaults</option>`)
		for _, key := range p.LayoutKeys {
			fmt.Fprintf(w, `<option value="%s">%s</option>`, templ.EscapeString(key), templ.EscapeString(key))
		}
		io.WriteString(w, `</select></label>`)

		io.WriteString(w, `<label>Layout override (JSON or YAML) <textarea name="layout" rows="5" placeholder='{"font_size": 48, "font_family": "Go Bold", "text_color": "#000000", "text_position": {"x": 0.5, "y": 0.45}}'></textarea></label>`)
		io.WriteString(w, `<label>Output <select name="outputType"><option value="pdf">Single PDF</option><option value="zip">Separate files</option></select></label>`)
		io.WriteString(w, `<label>File format <select name="itemFormat"><option value="jpeg">JPEG</option><option value="png">PNG</option><option value="pdf">PDF</option></select></label>`)
		io.WriteString(w, `<label>Preview name <input type="text" name="name" placeholder="Sample Name"></label>`)
		io.WriteString(w, `<button type="button" id="preview">Preview</button> <button type="submit">Generate</button>`)
		io.WriteString(w, `</form><div id="status"></div><img id="preview-img" alt="">`)

		_, err := io.WriteString(w, pageFoot)
		return err
	})
}

// ErrorAlert renders a user message as an HTML fragment.
func ErrorAlert(msg core.UserMessage) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		_, err := fmt.Fprintf(w, `<div class="alert" role="alert" data-code="%s"><strong>%s</strong>`,
			templ.EscapeString(msg.Code), templ.EscapeString(msg.Message))
		if err != nil {
			return err
		}
		if msg.Action != "" {
			fmt.Fprintf(w, ` <span>%s</span>`, templ.EscapeString(msg.Action))
		}
		_, err = fmt.Fprintf(w, ` <code>%s</code></div>`, templ.EscapeString(msg.Code))
		return err
	})
}

func humanBytes(n int64) string {
	const mb = 1 << 20
	if n >= mb {
		return fmt.Sprintf("%d MB", n/mb)
	}
	return fmt.Sprintf("%d KB", n>>10)
}

const pageHead = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>certforge</title>
<style>
body { font-family: system-ui, sans-serif; max-width: 42rem; margin: 2rem auto; padding: 0 1rem; color: #1f2937; }
label { display: block; margin: .75rem 0; }
textarea, select, input[type=text] { width: 100%; box-sizing: border-box; }
.hint { color: #6b7280; }
.alert { background: #fef2f2; border: 1px solid #fca5a5; padding: .75rem; margin: 1rem 0; }
#preview-img { max-width: 100%; margin-top: 1rem; }
</style>
</head>
<body>
<h1>Certificates</h1>
`

const pageFoot = `
<script>
const form = document.getElementById("gen");
const status = document.getElementById("status");

async function fail(res) {
  const body = await res.json().catch(() => ({ message: res.statusText, code: "ERR000" }));
  status.innerHTML = "";
  const div = document.createElement("div");
  div.className = "alert";
  div.textContent = body.message + (body.action ? " " + body.action : "") + " (" + body.code + ")";
  status.appendChild(div);
}

form.addEventListener("submit", async (e) => {
  e.preventDefault();
  status.textContent = "Generating...";
  const res = await fetch("/api/generate", { method: "POST", body: new FormData(form) });
  if (!res.ok) return fail(res);
  const name = (res.headers.get("Content-Disposition") || "").split("filename=")[1] || "certificates";
  const a = document.createElement("a");
  a.href = URL.createObjectURL(await res.blob());
  a.download = name.replaceAll('"', "");
  a.click();
  status.textContent = res.headers.get("X-Certificates-Rendered") + " generated, " +
    res.headers.get("X-Certificates-Skipped") + " skipped" +
    (res.headers.get("X-Layout-Warning") ? ". Saved layout was invalid, defaults used." : ".");
});

document.getElementById("preview").addEventListener("click", async () => {
  const data = new FormData(form);
  data.delete("file");
  const res = await fetch("/api/preview", { method: "POST", body: data });
  if (!res.ok) return fail(res);
  status.textContent = "";
  document.getElementById("preview-img").src = URL.createObjectURL(await res.blob());
});
</script>
</body>
</html>
`
