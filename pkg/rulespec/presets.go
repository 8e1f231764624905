package rulespec

// 内置预设包 ID
const (
	PresetStaticFiles   = "static_files"
	PresetStaticContent = "static_content"
	PresetCDNHosts      = "cdn_hosts"
	PresetAnalytics     = "analytics"
	PresetCommonStatic  = "common_static"
	PresetNonAPIContent = "non_api_content"
	PresetChromeStyle   = "chrome_style"
)

// BuiltinPresets 返回全部内置预设包（顺序固定）
func BuiltinPresets() []Preset {
	return []Preset{
		{
			ID:          PresetStaticFiles,
			Name:        "静态文件",
			Description: "常见静态文件过滤",
			Rules: []FilterRule{
				{ID: "static-style", Pattern: `\.(css|less|scss|sass)(\?|$)`, Type: FilterTypeURL, Enabled: true, Description: "样式文件"},
				{ID: "static-script", Pattern: `\.(js|jsx|ts|tsx|mjs)(\?|$)`, Type: FilterTypeURL, Enabled: true, Description: "脚本文件"},
				{ID: "static-image", Pattern: `\.(png|jpg|jpeg|gif|webp|svg|ico)(\?|$)`, Type: FilterTypeURL, Enabled: true, Description: "图片文件"},
				{ID: "static-font", Pattern: `\.(woff|woff2|ttf|eot|otf)(\?|$)`, Type: FilterTypeURL, Enabled: true, Description: "字体文件"},
				{ID: "static-sourcemap", Pattern: `\.(map)(\?|$)`, Type: FilterTypeURL, Enabled: true, Description: "Source Map文件"},
			},
		},
		{
			ID:          PresetStaticContent,
			Name:        "静态内容",
			Description: "基于Content-Type的静态内容过滤",
			Rules: []FilterRule{
				{ID: "content-css", Pattern: `^text/css`, Type: FilterTypeContentType, Enabled: true, Description: "CSS内容"},
				{ID: "content-js", Pattern: `^application/javascript`, Type: FilterTypeContentType, Enabled: true, Description: "JavaScript内容"},
				{ID: "content-js-text", Pattern: `^text/javascript`, Type: FilterTypeContentType, Enabled: true, Description: "JavaScript文本内容"},
				{ID: "content-image", Pattern: `^image/`, Type: FilterTypeContentType, Enabled: true, Description: "图片内容"},
				{ID: "content-font", Pattern: `^font/`, Type: FilterTypeContentType, Enabled: true, Description: "字体内容"},
				{ID: "content-app-font", Pattern: `^application/font`, Type: FilterTypeContentType, Enabled: true, Description: "字体内容"},
				{ID: "content-html", Pattern: `text/html`, Type: FilterTypeContentType, Enabled: true, Description: "HTML页面内容"},
			},
		},
		{
			ID:          PresetCDNHosts,
			Name:        "CDN域名",
			Description: "常见CDN服务域名过滤",
			Rules: []FilterRule{
				{ID: "cdn-generic", Pattern: `cdn\.`, Type: FilterTypeHost, Enabled: true, Description: "通用CDN域名"},
				{ID: "cdn-cloudfront", Pattern: `\.cloudfront\.net$`, Type: FilterTypeHost, Enabled: true, Description: "Amazon CloudFront"},
				{ID: "cdn-akamai", Pattern: `\.akamai\.net$`, Type: FilterTypeHost, Enabled: true, Description: "Akamai"},
				{ID: "cdn-fastly", Pattern: `\.fastly\.net$`, Type: FilterTypeHost, Enabled: true, Description: "Fastly"},
			},
		},
		{
			ID:          PresetAnalytics,
			Name:        "统计分析",
			Description: "统计分析服务过滤",
			Rules: []FilterRule{
				{ID: "analytics-google", Pattern: `google-analytics\.com`, Type: FilterTypeHost, Enabled: true, Description: "Google Analytics"},
				{ID: "analytics-generic", Pattern: `analytics\.`, Type: FilterTypeHost, Enabled: true, Description: "通用统计服务"},
				{ID: "analytics-tracking", Pattern: `tracking\.`, Type: FilterTypeHost, Enabled: true, Description: "通用跟踪服务"},
			},
		},
		{
			ID:          PresetCommonStatic,
			Name:        "常见静态目录",
			Description: "常见的静态资源目录过滤",
			Rules: []FilterRule{
				{ID: "dir-static", Pattern: `/static/`, Type: FilterTypeURL, Enabled: true, Description: "static目录"},
				{ID: "dir-assets", Pattern: `/assets/`, Type: FilterTypeURL, Enabled: true, Description: "assets目录"},
				{ID: "dir-dist", Pattern: `/dist/`, Type: FilterTypeURL, Enabled: true, Description: "dist目录"},
				{ID: "dir-public", Pattern: `/public/`, Type: FilterTypeURL, Enabled: true, Description: "public目录"},
			},
		},
		{
			ID:          PresetNonAPIContent,
			Name:        "非API内容过滤",
			Description: "过滤非API相关的内容",
			Rules: []FilterRule{
				{ID: "nonapi-html", Pattern: `text/html`, Type: FilterTypeContentType, Enabled: true, Description: "HTML页面内容"},
				{ID: "nonapi-plain", Pattern: `^text/plain`, Type: FilterTypeContentType, Enabled: true, Description: "纯文本内容"},
				{ID: "nonapi-multipart", Pattern: `^multipart/form-data`, Type: FilterTypeContentType, Enabled: true, Description: "表单数据"},
			},
		},
		{
			ID:          PresetChromeStyle,
			Name:        "Chrome风格过滤",
			Description: "模仿Chrome开发者工具'仅保存fetch/XHR'的过滤规则",
			Rules: []FilterRule{
				{ID: "chrome-media", Pattern: `\.(mp3|mp4|avi|mov|wav|ogg|webm|flv|mkv)(\?|$)`, Type: FilterTypeURL, Enabled: true, Description: "音频视频文件"},
				{ID: "chrome-doc", Pattern: `\.(pdf|doc|docx|xls|xlsx|ppt|pptx|txt|log)(\?|$)`, Type: FilterTypeURL, Enabled: true, Description: "文档文件"},
				{ID: "chrome-archive", Pattern: `\.(zip|rar|7z|tar|gz|bz2)(\?|$)`, Type: FilterTypeURL, Enabled: true, Description: "压缩文件"},
				{ID: "chrome-misc-static", Pattern: `\.(ico|svg|xml|json|yaml|yml)(\?|$)`, Type: FilterTypeURL, Enabled: true, Description: "其他静态资源"},
				{ID: "chrome-audio", Pattern: `^audio/`, Type: FilterTypeContentType, Enabled: true, Description: "音频内容"},
				{ID: "chrome-video", Pattern: `^video/`, Type: FilterTypeContentType, Enabled: true, Description: "视频内容"},
				{ID: "chrome-pdf", Pattern: `^application/pdf`, Type: FilterTypeContentType, Enabled: true, Description: "PDF文档"},
				{ID: "chrome-xml-text", Pattern: `^text/xml`, Type: FilterTypeContentType, Enabled: true, Description: "XML文本"},
				{ID: "chrome-xml-app", Pattern: `^application/xml`, Type: FilterTypeContentType, Enabled: true, Description: "XML应用"},
				{ID: "chrome-zip", Pattern: `^application/zip`, Type: FilterTypeContentType, Enabled: true, Description: "ZIP压缩包"},
				{ID: "chrome-js-text", Pattern: `^text/javascript`, Type: FilterTypeContentType, Enabled: true, Description: "JavaScript文本内容"},
				{ID: "chrome-ws", Pattern: `^ws://`, Type: FilterTypeURL, Enabled: true, Description: "WebSocket连接"},
				{ID: "chrome-wss", Pattern: `^wss://`, Type: FilterTypeURL, Enabled: true, Description: "安全WebSocket连接"},
			},
		},
	}
}

// FindBuiltinPreset 按 ID 查找内置预设包
func FindBuiltinPreset(id string) (*Preset, bool) {
	presets := BuiltinPresets()
	for i := range presets {
		if presets[i].ID == id {
			return &presets[i], true
		}
	}
	return nil, false
}
