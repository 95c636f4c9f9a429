package wordlist

// evenWords and oddWords form the two-column PGP-style wordlist: a code's
// first word is drawn from evenWords, its second from oddWords, its third
// (if any) from evenWords again, and so on. Alternating columns per
// position is what gives adjacent words in a spoken code maximal
// mnemonic distinctness — the original PGP word list (RFC 1751's
// "biometric" companion) uses the same even/odd split for the same
// reason.
//
// This is a representative subset of that list (64 entries per column,
// 6 bits of entropy per word) rather than the full canonical 256-entry
// table; a production deployment would swap in the full list without
// any codec change, since MakeCode/ExtractChannelID only depend on the
// table length.
var evenWords = []string{
	"adroitness", "adviser", "aggregate", "alkali", "almighty", "amulet",
	"amusement", "antenna", "applicant", "apollo", "armistice", "article",
	"asteroid", "autograph", "bandage", "benefit", "bestow", "bookshelf",
	"brackish", "breadline", "breakup", "brickyard", "briefcase", "burlesque",
	"butterfat", "camouflage", "candidate", "cannonball", "caravan", "caretaker",
	"celebrate", "cellulose", "certify", "chambermaid", "cherokee", "chicken",
	"chipmunk", "circulate", "classroom", "clawhammer", "clockwork", "cobra",
	"commence", "concurrent", "confidence", "conformist", "congregate", "consensus",
	"consulting", "corporate", "corrosion", "councilman", "crossover", "crucifix",
	"cumbersome", "customer", "dakota", "decadence", "december", "decimal",
	"designing", "detector", "detergent", "determine",
}

var oddWords = []string{
	"abbey", "acme", "adrian", "aerobic", "albatross", "alexander",
	"algebra", "alphabet", "amethyst", "annually", "anthology", "antibody",
	"appraise", "apricot", "arabella", "archaic", "artisan", "aspen",
	"assault", "attorney", "baboon", "backfield", "backward", "banjo",
	"beaming", "bedlamp", "beehive", "beeswax", "befriend", "belfry",
	"belligerent", "berserk", "billiard", "bison", "blackjack", "blockade",
	"blowtorch", "bluebird", "bombast", "bookkeeper", "borderline", "bowline",
	"boxcar", "bracelet", "bradbury", "breakwater", "broadcast", "brokenness",
	"brownstone", "buccaneer", "buffalo", "bulldog", "bunkhouse", "bustling",
	"cabana", "cabinet", "cache", "cannibal", "cartload", "caterpillar",
	"catwalk", "centurion", "chairlift", "chickadee",
}
