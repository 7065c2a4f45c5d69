package location

import "fmt"

const (
	// City is the canonical name of the city whose numbered districts the
	// resolver understands.
	City = "Praha"
	// WholeCity is the location preference meaning "anywhere in the city".
	WholeCity = "Celá Praha"

	regionEast    = "Praha-východ"
	regionWest    = "Praha-západ"
	regionCentral = "Středočeský kraj"

	maxDistrict = 22
)

func district(n int) string { return fmt.Sprintf("%s %d", City, n) }

// postalExceptions are full codes that do not follow the default of their
// three-digit range.
var postalExceptions = map[string]string{
	"11000": district(1),
	"14800": district(4),
	"15521": district(5),
	"15531": district(5),
	"10900": district(10),
	"25301": regionWest,
}

// postalPrefixes maps the first three digits of a postal code to the single
// district that range belongs to.
var postalPrefixes = buildPostalPrefixes()

func buildPostalPrefixes() map[string]string {
	m := map[string]string{
		"100": district(10), "101": district(10), "102": district(15), "103": district(22),
		"104": district(22), "106": district(10), "107": district(15), "108": district(10),
		"109": district(15),
		"110": district(1), "111": district(1), "116": district(1), "118": district(1), "119": district(1),
		"120": district(2), "121": district(2), "128": district(2),
		"130": district(3),
		"140": district(4), "141": district(4), "142": district(4), "143": district(12),
		"147": district(4), "148": district(11), "149": district(11),
		"150": district(5), "151": district(5), "152": district(5), "153": district(16),
		"154": district(5), "155": district(13), "156": district(16), "158": district(13),
		"160": district(6), "161": district(6), "162": district(6), "163": district(17),
		"164": district(6), "165": district(6), "169": district(6),
		"170": district(7), "171": district(7),
		"180": district(8), "181": district(8), "182": district(8), "184": district(8), "186": district(8),
		"190": district(9), "193": district(20), "196": district(18), "197": district(19),
		"198": district(14), "199": district(18),
		"250": regionEast, "251": regionEast,
		"252": regionWest, "253": regionWest,
	}
	for p := 254; p <= 299; p++ {
		m[fmt.Sprint(p)] = regionCentral
	}
	for p := 301; p <= 326; p++ {
		m[fmt.Sprint(p)] = "Plzeň"
	}
	for p := 602; p <= 638; p++ {
		m[fmt.Sprint(p)] = "Brno"
	}
	for p := 700; p <= 725; p++ {
		m[fmt.Sprint(p)] = "Ostrava"
	}
	return m
}

type keyword struct {
	fragment string
	district string
}

// keywords is scanned in order and the first contained fragment wins, so a
// fragment that is a substring of another must come after it.
var keywords = []keyword{
	{"praha-vychod", regionEast},
	{"praha vychod", regionEast},
	{"praha-zapad", regionWest},
	{"praha zapad", regionWest},

	{"stare mesto", district(1)},
	{"mala strana", district(1)},
	{"josefov", district(1)},
	{"hradcany", district(1)},
	{"nove mesto", district(1)},
	{"vaclavske namesti", district(1)},
	{"vinohrady", district(2)},
	{"vysehrad", district(2)},
	{"zizkov", district(3)},
	{"nusle", district(4)},
	{"pankrac", district(4)},
	{"branik", district(4)},
	{"podoli", district(4)},
	{"michle", district(4)},
	{"kunratice", district(4)},
	{"smichov", district(5)},
	{"andel", district(5)},
	{"zlicin", district(5)},
	{"barrandov", district(5)},
	{"kosire", district(5)},
	{"motol", district(5)},
	{"hlubocepy", district(5)},
	{"radlice", district(5)},
	{"jinonice", district(5)},
	{"dejvice", district(6)},
	{"bubenec", district(6)},
	{"stresovice", district(6)},
	{"brevnov", district(6)},
	{"ruzyne", district(6)},
	{"veleslavin", district(6)},
	{"vokovice", district(6)},
	{"suchdol", district(6)},
	{"letnany", district(18)},
	{"holesovice", district(7)},
	{"letna", district(7)},
	{"troja", district(7)},
	{"karlin", district(8)},
	{"liben", district(8)},
	{"kobylisy", district(8)},
	{"bohnice", district(8)},
	{"dablice", district(8)},
	{"vysocany", district(9)},
	{"prosek", district(9)},
	{"strizkov", district(9)},
	{"vrsovice", district(10)},
	{"strasnice", district(10)},
	{"malesice", district(10)},
	{"zabehlice", district(10)},
	{"chodov", district(11)},
	{"haje", district(11)},
	{"modrany", district(12)},
	{"komorany", district(12)},
	{"nove butovice", district(13)},
	{"stodulky", district(13)},
	{"luziny", district(13)},
	{"cerny most", district(14)},
	{"hloubetin", district(14)},
	{"horni mecholupy", district(15)},
	{"hostivar", district(15)},
	{"radotin", district(16)},
	{"zbraslav", district(16)},
	{"repy", district(17)},
	{"kbely", district(19)},
	{"horni pocernice", district(20)},
	{"ujezd nad lesy", district(21)},
	{"uhrineves", district(22)},

	{"cernosice", regionWest},
	{"roztoky", regionWest},
	{"jesenice", regionWest},
	{"ricany", regionEast},
	{"brandys nad labem", regionEast},
	{"celakovice", regionEast},
	{"beroun", regionCentral},
	{"kladno", regionCentral},
	{"mlada boleslav", regionCentral},
	{"kutna hora", regionCentral},
	{"benesov", regionCentral},
	{"melnik", regionCentral},
	{"pribram", regionCentral},

	{"brno", "Brno"},
	{"ostrava", "Ostrava"},
	{"plzen", "Plzeň"},
	{"olomouc", "Olomouc"},
	{"liberec", "Liberec"},
	{"ceske budejovice", "České Budějovice"},
	{"hradec kralove", "Hradec Králové"},
	{"pardubice", "Pardubice"},
	{"karlovy vary", "Karlovy Vary"},
	{"usti nad labem", "Ústí nad Labem"},

	{"praha", City},
}
