package web

import (
	"bytes"
	"fmt"
	"html/template"
	"log"
	"net/http"
	"path/filepath"

	"github.com/aarondl/authboss/v3"
	"github.com/nhirsama/infra-console/src/access"
	"github.com/nhirsama/infra-console/src/inter"
	"github.com/nhirsama/infra-console/src/viewmodel"
)

// pageData 所有页面共用的渲染数据
type pageData struct {
	status  int
	Title   string
	Active  string
	Viewer  viewmodel.Viewer
	Success string
	Error   string
	Page    interface{}
}

var funcMap = template.FuncMap{
	"dict": func(values ...interface{}) (map[string]interface{}, error) {
		if len(values)%2 != 0 {
			return nil, fmt.Errorf("invalid dict call")
		}
		dict := make(map[string]interface{}, len(values)/2)
		for i := 0; i < len(values); i += 2 {
			key, ok := values[i].(string)
			if !ok {
				return nil, fmt.Errorf("dict keys must be strings")
			}
			dict[key] = values[i+1]
		}
		return dict, nil
	},
	"hasPerm": func(role inter.Role, reqPerm int) bool {
		return access.HasPermission(role, inter.PermissionType(reqPerm))
	},
	"permType": func(p int) inter.PermissionType {
		return inter.PermissionType(p)
	},
	"statusText":  viewmodel.StatusText,
	"statusClass": viewmodel.StatusClass,
	"typeText":    viewmodel.TypeText,
	"sensorText":  viewmodel.SensorText,
	"roleText":    viewmodel.RoleText,
	"formatValue": viewmodel.FormatValue,
	"formatDate":  viewmodel.FormatDate,
}

// loadTemplates 加载所有 HTML 模板，业务页面共用 layout.html
func loadTemplates(htmlDir string) (map[string]*template.Template, error) {
	templates := make(map[string]*template.Template)

	parse := func(name string, files ...string) error {
		paths := make([]string, 0, len(files))
		for _, f := range files {
			paths = append(paths, filepath.Join(htmlDir, f))
		}
		t, err := template.New(name).Funcs(funcMap).ParseFiles(paths...)
		if err != nil {
			return fmt.Errorf("加载模板 %s 失败: %w", name, err)
		}
		templates[name] = t
		return nil
	}

	if err := parse("login.html", "login.html"); err != nil {
		return nil, err
	}
	for _, page := range []string{"dashboard.html", "assets.html", "sensors.html", "predictions.html"} {
		if err := parse(page, "layout.html", page); err != nil {
			return nil, err
		}
	}
	return templates, nil
}

// render 渲染页面，同时取出 Flash 消息
func (ws *webServer) render(w http.ResponseWriter, r *http.Request, name string, data pageData) {
	t, ok := ws.templates[name]
	if !ok {
		http.Error(w, "模板未找到: "+name, http.StatusInternalServerError)
		return
	}
	if msg := authboss.FlashSuccess(w, r); msg != "" && data.Success == "" {
		data.Success = msg
	}
	if msg := authboss.FlashError(w, r); msg != "" && data.Error == "" {
		data.Error = msg
	}

	entry := "layout"
	if name == "login.html" {
		entry = "login"
	}
	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, entry, data); err != nil {
		log.Printf("渲染模板 %s 失败: %v", name, err)
		http.Error(w, "页面渲染失败", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if data.status != 0 {
		w.WriteHeader(data.status)
	}
	_, _ = w.Write(buf.Bytes())
}
