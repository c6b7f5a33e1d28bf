package model

// Service описывает услугу провайдера, для которой арендуется номер.
type Service struct {
	Key   string
	ID    string
	Name  string
	Label string
}

// Network описывает оператора связи, которого можно запросить при аренде.
type Network struct {
	Code  string
	Label string
}

// NetworkAny позволяет провайдеру выбрать оператора самостоятельно.
const NetworkAny = "any"

// Services перечисляет поддерживаемые услуги в порядке отображения.
var Services = []Service{
	{Key: "okvip1", ID: "687", Name: "Saibo88", Label: "OKVIP"},
	{Key: "okvip2", ID: "733", Name: "Xm288", Label: "OKVIP"},
}

// Networks перечисляет операторов в порядке отображения.
var Networks = []Network{
	{Code: NetworkAny, Label: "🎲 Bất kỳ"},
	{Code: "MOBIFONE", Label: "📱 Mobifone"},
	{Code: "VINAPHONE", Label: "📞 Vinaphone"},
	{Code: "VIETTEL", Label: "📶 Viettel"},
	{Code: "VIETNAMOBILE", Label: "🔵 Vietnamobile"},
	{Code: "ITELECOM", Label: "🟢 ITelecom"},
	{Code: "WINTEL", Label: "📡 Wintel"},
}

// LookupService возвращает услугу по ключу.
func LookupService(key string) (Service, bool) {
	for _, s := range Services {
		if s.Key == key {
			return s, true
		}
	}
	return Service{}, false
}

// LookupNetwork возвращает оператора по коду.
func LookupNetwork(code string) (Network, bool) {
	for _, n := range Networks {
		if n.Code == code {
			return n, true
		}
	}
	return Network{}, false
}
