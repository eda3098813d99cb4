package hello

type Quote struct {
	Author string
	Text   string
}

func (q Quote) String() string { return q.Text + " — " + q.Author }

// Quotes are from https://en.wikiquote.org/ (CC BY-SA) unless noted.
var Quotes = []Quote{
	{"Linus Torvalds", "I'm doing a (free) operating system (just a hobby, won't be big and professional like gnu) for 386(486) AT clones."},
	{"Linus Torvalds", "Making Linux GPL'd was definitely the best thing I ever did."},
	{"Linus Torvalds", "Talk is cheap. Show me the code."},
	{"Linus Torvalds", "I am a lazy person, which is why I like open source, for other people to do work for me."},
	{"John D. Carmack", "Sharing the code just seems like The Right Thing to Do, it costs us rather little, but it benefits a lot of people in sometimes very significant ways."},
	{"Richard M. Stallman", "I consider that the golden rule requires that if I like a program I must share it with other people who like it."},
	{"Richard M. Stallman", "Once GNU is written, everyone will be able to obtain good system software free, just like air."},
	{"Richard M. Stallman", "Geeks like to think that they can ignore politics, you can leave politics alone, but politics won't leave you alone."},
	{"Richard M. Stallman", "People sometimes ask me if it is a sin in the Church of Emacs to use vi. Using a free version of vi is not a sin; it is a penance. So happy hacking."},
	{"Richard M. Stallman", "I did write some code in Java once, but that was the island in Indonesia."},
	{"Jessie Frazelle", "Building stuff wouldn't be fun if it wasn't hard."},
	{"Julia Evans", "Asking good questions is a super important skill when writing software."},
	{"Helen Keller", "Alone we can do so little; together we can do so much."},
	{"Louisa May Alcott", "It takes two flints to make a fire."},
	{"Amit Ray", "Collaboration has no hierarchy. The Sun collaborates with soil to bring flowers on the earth."},
	{"Reid Hoffman", "No matter how brilliant your mind or strategy, if you're playing a solo game, you'll always lose out to a team."},
	{"Gabe Newell", "Late is just for a little while. Suck is forever right?"},
}
