package models

// corosSportNames maps COROS sport type codes to display names as the
// Training Hub presents them.
var corosSportNames = map[int]string{
	100:  "跑步",
	101:  "室内跑",
	102:  "越野跑",
	103:  "铁人三项跑",
	200:  "骑行",
	201:  "室内骑行",
	300:  "泳池游泳",
	301:  "开放水域游泳",
	302:  "铁人三项游泳",
	400:  "铁人三项",
	500:  "有氧运动",
	501:  "力量训练",
	502:  "有氧健身操",
	503:  "高强度间歇",
	504:  "健身瑜伽",
	600:  "健走",
	601:  "室内健走",
	700:  "徒步",
	800:  "登山",
	900:  "滑雪",
	901:  "单板滑雪",
	902:  "越野滑雪",
	1000: "划船",
	1001: "室内划船",
	1100: "跳绳",
	1200: "飞盘",
	1300: "水上运动",
	1301: "皮划艇",
	1302: "帆船",
	1303: "冲浪",
	1400: "速降",
	1500: "攀岩",
	1600: "网球",
	1700: "跑步机",
	1800: "综合训练",
	9999: "其他",
}

// SportName returns the display name for a COROS sport type code, falling
// back to the generic "运动" for codes the map does not know.
func SportName(sportType int) string {
	if name, ok := corosSportNames[sportType]; ok {
		return name
	}
	return "运动"
}
